package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/ally/pkg/errutil"
)

type responder interface {
	reply(i *discordgo.InteractionCreate, content string, ephemeral bool) error
}

type roleGranter interface {
	grantRole(guildID, userID, roleID string) error
}

// sessionResponder answers interactions and grants roles through a live
// gateway session.
type sessionResponder struct {
	session *discordgo.Session
}

func (r *sessionResponder) reply(i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return errutil.HandleDiscordError("interaction_respond", func() error {
		return r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   flags,
			},
		})
	})
}

func (r *sessionResponder) grantRole(guildID, userID, roleID string) error {
	return errutil.HandleDiscordError("grant_role", func() error {
		return r.session.GuildMemberRoleAdd(guildID, userID, roleID)
	})
}
