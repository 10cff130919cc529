package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music"
	"github.com/rs/zerolog"
)

// noticeTimeout bounds the channel fallback, which runs even after the
// interaction context expired.
const noticeTimeout = 10 * time.Second

type MusicCommand struct {
	Music    Service
	Settings Settings
	// Notifier posts the reply into the text channel when the interaction
	// can no longer be answered.
	Notifier music.Notifier
	Log      zerolog.Logger
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Control music playback" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return []int64{} }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("play", "Play a song from a link or a search query", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "input",
				Description: "Link or search query",
				Required:    true,
			}),
			sub("pause", "Pause or unpause the music player"),
			sub("skip", "Stop and skip the current song. Also stops looping"),
			sub("loop", "Loop the current song. Use again to cancel looping"),
			sub("quit", "Leave the voice channel and clear the queue"),
			sub("queue", "Show queued songs (at most 20)"),
			sub("history", "Show recently played songs"),
			sub("channel", "Post music notices in this channel (administrators)"),
		},
	}
}

// request is one parsed /music invocation.
type request struct {
	sub       string
	input     string
	guildID   string
	guildName string
	channelID string
	caller    music.Caller
	admin     bool
}

// reply is the single outcome shown to the caller.
type reply struct {
	content string
	embed   *discordgo.MessageEmbed
}

// text renders the reply as a plain channel message.
func (r reply) text() string {
	if r.embed == nil {
		return r.content
	}
	var sb strings.Builder
	if r.embed.Title != "" {
		fmt.Fprintf(&sb, "**%s**\n", r.embed.Title)
	}
	if r.embed.Description != "" {
		sb.WriteString(r.embed.Description + "\n")
	}
	for _, f := range r.embed.Fields {
		fmt.Fprintf(&sb, "%s: %s\n", f.Name, f.Value)
	}
	return strings.TrimSpace(sb.String())
}

// send answers the interaction; swapped in tests that have no live session.
var send = func(s *discordgo.Session, e *discordgo.InteractionCreate, r reply, deferred bool) error {
	switch {
	case deferred && r.embed != nil:
		return bot.FollowupEmbed(s, e, r.embed)
	case deferred:
		return bot.Followup(s, e, r.content)
	case r.embed != nil:
		return bot.RespondEmbed(s, e, r.embed)
	default:
		return bot.Respond(s, e, r.content)
	}
}

func (c *MusicCommand) Run(ctx context.Context, data any) error {
	v, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := v.Session, v.Event

	opts := e.ApplicationCommandData().Options
	if len(opts) == 0 {
		return bot.RespondEphemeral(s, e, "Missing subcommand.")
	}
	v.Args = command.SubcommandArgs(e.ApplicationCommandData())

	user := bot.InteractionUser(e)
	req := request{
		sub:       opts[0].Name,
		guildID:   e.GuildID,
		channelID: e.ChannelID,
		caller: music.Caller{
			UserID:     user.ID,
			Name:       bot.DisplayName(e),
			Privileged: config.IsDeveloper(v.Config, user.ID),
		},
	}
	for _, opt := range opts[0].Options {
		if opt.Name == "input" {
			req.input = strings.TrimSpace(opt.StringValue())
		}
	}
	if g, err := s.State.Guild(e.GuildID); err == nil {
		req.guildName = g.Name
	}
	if req.sub == "channel" {
		req.admin = bot.IsAdministrator(s, e.Member, v.Config)
	}

	// Searching and joining can outlast the 3s interaction deadline.
	deferred := false
	if req.sub == "play" {
		if err := bot.RespondDeferred(s, e); err != nil {
			c.Log.Warn().Err(err).Str("guild", req.guildID).Msg("Failed to defer response")
		} else {
			deferred = true
		}
	}
	return c.deliver(ctx, s, e, req, c.execute(ctx, req), deferred)
}

// deliver answers the interaction and falls back to the text channel when
// the reply is refused, e.g. after the interaction token expired.
func (c *MusicCommand) deliver(ctx context.Context, s *discordgo.Session, e *discordgo.InteractionCreate, req request, r reply, deferred bool) error {
	err := send(s, e, r, deferred)
	if err == nil || c.Notifier == nil {
		return err
	}
	c.Log.Warn().Err(err).Str("guild", req.guildID).Str("sub", req.sub).Msg("Interaction reply failed, posting to channel")

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
	defer cancel()
	if nerr := c.Notifier.Notify(nctx, req.guildID, req.channelID, r.text(), 0); nerr != nil {
		return errors.Join(err, nerr)
	}
	return nil
}

func (c *MusicCommand) execute(ctx context.Context, req request) reply {
	switch req.sub {
	case "play":
		if req.input == "" {
			return reply{content: "Input is required."}
		}
		res, err := c.Music.Play(ctx, req.guildID, req.caller, req.channelID, req.input)
		if err != nil {
			return c.failed(req, err)
		}
		msg := fmt.Sprintf("Song *%s* added to queue!", res.Track.Title)
		if res.LoopingTitle != "" {
			msg += fmt.Sprintf("\n(Note: Currently looping *%s*)", res.LoopingTitle)
		}
		return reply{content: msg}

	case "pause":
		paused, err := c.Music.PauseOrResume(ctx, req.guildID, req.caller)
		if err != nil {
			return c.failed(req, err)
		}
		if paused {
			return reply{content: "Music player paused!"}
		}
		return reply{content: "Music player resumed!"}

	case "skip":
		wasLooping, err := c.Music.Skip(ctx, req.guildID, req.caller)
		if err != nil {
			return c.failed(req, err)
		}
		if wasLooping {
			return reply{content: "Skipping the current song. Looping stopped."}
		}
		return reply{content: "Skipping the current song."}

	case "loop":
		looping, err := c.Music.ToggleLoop(ctx, req.guildID, req.caller)
		if err != nil {
			return c.failed(req, err)
		}
		if looping {
			return reply{content: "Looping started. Run `/music loop` again to cancel..."}
		}
		return reply{content: "Looping stopped."}

	case "quit":
		if err := c.Music.Quit(ctx, req.guildID, req.caller); err != nil {
			return c.failed(req, err)
		}
		return reply{content: "Ready to leave. Goodbye!"}

	case "queue":
		snap, err := c.Music.ListQueue(req.guildID)
		if err != nil {
			return c.failed(req, err)
		}
		return reply{embed: queueEmbed(req.guildName, snap)}

	case "history":
		tracks, err := c.Settings.FetchTrackHistory(req.guildID)
		if err != nil {
			return c.failed(req, err)
		}
		return reply{embed: historyEmbed(tracks)}

	case "channel":
		if !req.admin {
			return reply{content: "Only server administrators may change the music channel."}
		}
		if err := c.Settings.SetMusicChannel(req.guildID, req.channelID); err != nil {
			return c.failed(req, err)
		}
		return reply{content: fmt.Sprintf("Music notices will be posted in <#%s>.", req.channelID)}

	default:
		return reply{content: fmt.Sprintf("Unknown subcommand: %s", req.sub)}
	}
}

func (c *MusicCommand) failed(req request, err error) reply {
	c.Log.Debug().Err(err).Str("guild", req.guildID).Str("sub", req.sub).Msg("music command rejected")
	return reply{content: errorText(err)}
}
