package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/ally/pkg/alliances"
	"github.com/small-frappuccino/ally/pkg/nations"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// NationService is the slice of the nation pipeline the command handlers use.
type NationService interface {
	NationByID(ctx context.Context, nationID int, opts nations.RefreshOptions) (*storage.Nation, error)
	CheckVerification(filter nations.VerificationFilter) (nations.VerificationStatus, error)
	RecordVerification(nationID int, discordUsername string) error
}

// AllianceService is the slice of the alliance pipeline the command handlers use.
type AllianceService interface {
	AllianceByID(ctx context.Context, allianceID int, opts alliances.RefreshOptions) (*storage.Alliance, error)
}

// GuildService is the slice of the guild configuration service the command
// handlers use.
type GuildService interface {
	Config(guildID string) (*storage.GuildConfig, error)
	PutConfig(cfg *storage.GuildConfig) error
	LinkChannel(guildID, channelID string, nationID int, channelType string) error
	NationIDForChannel(guildID, channelID string) (int, error)
}

// Handler routes slash command interactions to the domain services.
type Handler struct {
	nations   NationService
	alliances AllianceService
	guilds    GuildService
	respond   responder
	roles     roleGranter
	timeout   time.Duration
}

// NewHandler creates a command handler bound to a live session.
func NewHandler(s *discordgo.Session, n NationService, a AllianceService, g GuildService) *Handler {
	sr := &sessionResponder{session: s}
	return &Handler{
		nations:   n,
		alliances: a,
		guilds:    g,
		respond:   sr,
		roles:     sr,
		timeout:   15 * time.Second,
	}
}

// Definitions returns the application commands the bot registers.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "register",
			Description: "Link your Discord account to your Politics & War nation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "nation-id",
					Description: "Your nation id",
					Required:    true,
				},
			},
		},
		{
			Name:        "glance",
			Description: "Show a quick summary of a nation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "nation-id",
					Description: "Nation id (defaults to your registered nation)",
					Required:    false,
				},
			},
		},
		{
			Name:        "setup",
			Description: "Configure this server for an alliance",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "alliance-id",
					Description: "Alliance id this server belongs to",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "data-validity",
					Description: "Minutes cached game data stays fresh",
					Required:    false,
				},
			},
		},
		{
			Name:        "link-channel",
			Description: "Bind this channel to a nation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "nation-id",
					Description: "Nation id to bind",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Channel purpose (default text_channel)",
					Required:    false,
				},
			},
		},
	}
}

// Register overwrites the bot's global command set and installs the
// interaction handler.
func Register(s *discordgo.Session, h *Handler) error {
	if s.State == nil || s.State.User == nil {
		return fmt.Errorf("session state not initialized")
	}
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", Definitions()); err != nil {
		return fmt.Errorf("overwrite application commands: %w", err)
	}
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		h.HandleInteraction(i)
	})
	slog.Info("slash commands registered", "count", len(Definitions()))
	return nil
}

// HandleInteraction dispatches one interaction to its command handler.
func (h *Handler) HandleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	name := i.ApplicationCommandData().Name
	var err error
	switch name {
	case "register":
		err = h.handleRegister(ctx, i)
	case "glance":
		err = h.handleGlance(ctx, i)
	case "setup":
		err = h.handleSetup(ctx, i)
	case "link-channel":
		err = h.handleLinkChannel(i)
	default:
		err = h.respond.reply(i, "Unknown command.", true)
	}
	if err != nil {
		slog.Error("command failed", "command", name, "error", err)
		_ = h.respond.reply(i, "Something went wrong while running that command.", true)
	}
}

func commandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (int, bool) {
	opt, ok := opts[name]
	if !ok {
		return 0, false
	}
	return int(opt.IntValue()), true
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	opt, ok := opts[name]
	if !ok {
		return "", false
	}
	return opt.StringValue(), true
}

func interactionUsername(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}
