package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/rs/zerolog"
)

// interactionTimeout matches how long Discord keeps an interaction token valid.
const interactionTimeout = 15 * time.Minute

// NodeSource yields the connected audio node for voice forwarding.
type NodeSource interface {
	RequireNode() (node.Node, error)
}

// Bot owns the Discord session. It is the voice gateway and notifier of the
// music coordinator and dispatches slash commands from the registry.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	registry *cmd.Registry
	nodes    NodeSource
	log      zerolog.Logger

	// ctx is the run context; interactions derive from it.
	ctx context.Context

	mu     sync.Mutex
	voices map[string]*voiceSession

	commandCacheDir string
}

// New creates the session without connecting.
func New(cfg *config.Config, store *storage.Storage, registry *cmd.Registry, nodes NodeSource, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b := &Bot{
		dg:              dg,
		cfg:             cfg,
		storage:         store,
		registry:        registry,
		nodes:           nodes,
		log:             log.With().Str("module", "discord").Logger(),
		ctx:             context.Background(),
		voices:          make(map[string]*voiceSession),
		commandCacheDir: defaultCommandCacheDir,
	}

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onVoiceServerUpdate)
	return b, nil
}

// Open connects the gateway. Interactions derive their context from ctx.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

// Close disconnects the gateway.
func (b *Bot) Close() error {
	b.log.Info().Msg("Closing Discord session")
	return b.dg.Close()
}

// UserID is the bot's own user ID, known once the session is open.
func (b *Bot) UserID() string {
	if b.dg.State != nil && b.dg.State.User != nil {
		return b.dg.State.User.ID
	}
	return ""
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		b.leaveIfBlacklisted(g.ID)
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(g.Guild.ID) {
		return
	}
	if !b.cfg.InitSlashCommands {
		b.log.Debug().Str("guild", g.Guild.ID).Msg("Registering slash commands skipped")
		return
	}
	if err := b.registerCommands(g.Guild.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.Guild.ID).Msg("Failed to register commands")
	}
}

func (b *Bot) leaveIfBlacklisted(guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Msg("Leaving blacklisted guild")
	if err := b.dg.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("Failed to leave guild")
	}
	return true
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.CommandType != discordgo.ChatApplicationCommand {
		return
	}

	c := b.registry.Get(data.Name)
	if c == nil {
		b.log.Warn().Str("command", data.Name).Msg("Unknown command")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
	defer cancel()

	slash := &command.SlashInteractionContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
		Config:  b.cfg,
	}
	err := c.Run(ctx, &cmd.Invocation{Data: slash})
	if err == nil {
		return
	}
	b.log.Error().Err(err).Str("command", data.Name).Str("guild", i.GuildID).Msg("Error running slash command")
	if rerr := bot.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Error running slash command: %v", err),
		Color:       bot.EmbedColor,
	}); rerr != nil && !errors.Is(rerr, context.Canceled) {
		b.log.Debug().Err(rerr).Msg("Could not report command error")
	}
}

// IsCooldownExempt lets administrators skip command cooldowns.
func (b *Bot) IsCooldownExempt(v *command.SlashInteractionContext) bool {
	return bot.IsAdministrator(v.Session, v.Event.Member, b.cfg)
}
