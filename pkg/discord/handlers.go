package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/ally/pkg/alliances"
	"github.com/small-frappuccino/ally/pkg/guilds"
	"github.com/small-frappuccino/ally/pkg/nations"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// handleRegister links the invoking Discord account to a nation. The nation's
// in-game Discord field must match the invoking username, so the nation is
// always refetched before the check.
func (h *Handler) handleRegister(ctx context.Context, i *discordgo.InteractionCreate) error {
	opts := commandOptions(i)
	nationID, ok := intOption(opts, "nation-id")
	if !ok || nationID <= 0 {
		return h.respond.reply(i, "Please provide a valid nation id.", true)
	}

	username := interactionUsername(i)
	if username == "" {
		return h.respond.reply(i, "Could not determine your Discord username.", true)
	}

	nation, err := h.nations.NationByID(ctx, nationID, nations.RefreshOptions{ForceRefresh: true})
	if err != nil {
		return err
	}
	if nation == nil {
		return h.respond.reply(i, fmt.Sprintf("Nation %d could not be found right now. Try again in a few minutes.", nationID), true)
	}
	if !strings.EqualFold(strings.TrimSpace(nation.DiscordHandle), username) {
		return h.respond.reply(i, fmt.Sprintf(
			"The Discord field on nation **%s** does not match your username. Set it to `%s` on your nation page, then run /register again.",
			nation.NationName, username), true)
	}

	if err := h.nations.RecordVerification(nationID, username); err != nil {
		return err
	}

	if i.GuildID != "" && i.Member != nil && i.Member.User != nil {
		if cfg, cfgErr := h.guilds.Config(i.GuildID); cfgErr == nil && cfg != nil && cfg.VerifiedRoleID != "" {
			if roleErr := h.roles.grantRole(i.GuildID, i.Member.User.ID, cfg.VerifiedRoleID); roleErr != nil {
				slog.Warn("verified role could not be granted", "guild_id", i.GuildID, "error", roleErr)
			}
		}
	}

	return h.respond.reply(i, fmt.Sprintf("You are now registered as **%s** of **%s**.", nation.LeaderName, nation.NationName), true)
}

// handleGlance shows a nation summary using cached data where it is still
// fresh. Without an explicit nation id it falls back to the invoker's
// registered nation.
func (h *Handler) handleGlance(ctx context.Context, i *discordgo.InteractionCreate) error {
	opts := commandOptions(i)
	nationID, ok := intOption(opts, "nation-id")
	if !ok {
		status, err := h.nations.CheckVerification(nations.VerificationFilter{DiscordUsername: interactionUsername(i)})
		if err != nil {
			return err
		}
		if !status.Verified {
			return h.respond.reply(i, "You are not registered yet. Use /register, or pass a nation id.", true)
		}
		nationID = status.NationID
	}

	refresh := nations.RefreshOptions{}
	if i.GuildID != "" {
		if cfg, err := h.guilds.Config(i.GuildID); err == nil && cfg != nil {
			refresh.ValidityMinutes = cfg.DataValidityMins
		}
	}

	nation, err := h.nations.NationByID(ctx, nationID, refresh)
	if err != nil {
		return err
	}
	if nation == nil {
		return h.respond.reply(i, fmt.Sprintf("No data available for nation %d.", nationID), true)
	}
	return h.respond.reply(i, formatNationGlance(nation), false)
}

// handleSetup binds the guild to an alliance and creates or updates its
// configuration document.
func (h *Handler) handleSetup(ctx context.Context, i *discordgo.InteractionCreate) error {
	if i.GuildID == "" {
		return h.respond.reply(i, "This command can only be used in a server.", true)
	}

	opts := commandOptions(i)
	allianceID, ok := intOption(opts, "alliance-id")
	if !ok || allianceID <= 0 {
		return h.respond.reply(i, "Please provide a valid alliance id.", true)
	}

	alliance, err := h.alliances.AllianceByID(ctx, allianceID, alliances.RefreshOptions{})
	if err != nil {
		return err
	}
	if alliance == nil {
		return h.respond.reply(i, fmt.Sprintf("Alliance %d could not be found right now. Try again in a few minutes.", allianceID), true)
	}

	cfg, err := h.guilds.Config(i.GuildID)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = &storage.GuildConfig{GuildID: i.GuildID}
	}
	cfg.AllianceID = alliance.AllianceID
	cfg.AllianceName = alliance.Name
	if validity, ok := intOption(opts, "data-validity"); ok && validity > 0 {
		cfg.DataValidityMins = validity
	}
	if i.Member != nil && i.Member.User != nil && !containsString(cfg.Admins, i.Member.User.ID) {
		cfg.Admins = append(cfg.Admins, i.Member.User.ID)
	}

	if err := h.guilds.PutConfig(cfg); err != nil {
		return err
	}
	return h.respond.reply(i, fmt.Sprintf("This server is now configured for **%s**.", alliance.Name), true)
}

// handleLinkChannel binds the current channel to a nation.
func (h *Handler) handleLinkChannel(i *discordgo.InteractionCreate) error {
	if i.GuildID == "" {
		return h.respond.reply(i, "This command can only be used in a server.", true)
	}

	opts := commandOptions(i)
	nationID, ok := intOption(opts, "nation-id")
	if !ok || nationID <= 0 {
		return h.respond.reply(i, "Please provide a valid nation id.", true)
	}
	channelType, _ := stringOption(opts, "type")

	if err := h.guilds.LinkChannel(i.GuildID, i.ChannelID, nationID, channelType); err != nil {
		if errors.Is(err, guilds.ErrGuildNotFound) {
			return h.respond.reply(i, "This server is not configured yet. Run /setup first.", true)
		}
		return err
	}
	return h.respond.reply(i, fmt.Sprintf("This channel now tracks nation %d.", nationID), true)
}

func formatNationGlance(n *storage.Nation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** led by %s\n", n.NationName, n.LeaderName)
	if n.AllianceID != 0 {
		fmt.Fprintf(&b, "Alliance: %s (%s)\n", n.AllianceName, n.AlliancePosition)
	} else {
		b.WriteString("Alliance: none\n")
	}
	fmt.Fprintf(&b, "Cities: %d | Score: %.2f\n", n.NumCities, n.Score)
	fmt.Fprintf(&b, "Military: %d soldiers, %d tanks, %d aircraft, %d ships, %d spies",
		n.Soldiers, n.Tanks, n.Aircraft, n.Ships, n.Spies)
	return b.String()
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
