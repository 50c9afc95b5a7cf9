package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/ally/pkg/errutil"
)

// RegisterEvents installs gateway event handlers that depend on per-guild
// configuration.
func RegisterEvents(s *discordgo.Session, g GuildService) {
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		slog.Info("gateway ready", "guilds", len(r.Guilds))
	})
	s.AddHandler(func(_ *discordgo.Session, gc *discordgo.GuildCreate) {
		cfg, err := g.Config(gc.ID)
		if err != nil {
			slog.Error("guild config lookup failed on guild create", "guild_id", gc.ID, "error", err)
			return
		}
		if cfg == nil {
			slog.Info("joined unconfigured guild", "guild_id", gc.ID, "name", gc.Name)
			return
		}
		slog.Info("joined configured guild", "guild_id", gc.ID, "alliance_id", cfg.AllianceID)
	})
	s.AddHandler(func(session *discordgo.Session, m *discordgo.GuildMemberAdd) {
		onMemberJoin(session, g, m)
	})
}

// onMemberJoin greets new members in the configured welcome channel and tags
// them with the unverified role until they register.
func onMemberJoin(s *discordgo.Session, g GuildService, m *discordgo.GuildMemberAdd) {
	cfg, err := g.Config(m.GuildID)
	if err != nil {
		slog.Error("guild config lookup failed on member join", "guild_id", m.GuildID, "error", err)
		return
	}
	if cfg == nil || m.User == nil {
		return
	}

	if cfg.UnverifiedRoleID != "" {
		_ = errutil.HandleDiscordError("assign_unverified_role", func() error {
			return s.GuildMemberRoleAdd(m.GuildID, m.User.ID, cfg.UnverifiedRoleID)
		})
	}

	if cfg.WelcomeChannelID != "" {
		greeting := fmt.Sprintf("Welcome <@%s>! Use /register with your nation id to link your account.", m.User.ID)
		_ = errutil.HandleDiscordError("send_greeting", func() error {
			_, err := s.ChannelMessageSend(cfg.WelcomeChannelID, greeting)
			return err
		})
	}
}
