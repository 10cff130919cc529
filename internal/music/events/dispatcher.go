// Package events turns the audio node's asynchronous track events into player
// transitions.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/rs/zerolog"
)

const (
	DefaultAdvanceDelay  = time.Second
	DefaultNowPlayingTTL = 30 * time.Second
)

// Terminator tears a player down and tells its text channel why. It reports
// false when the player was already gone.
type Terminator interface {
	Terminate(ctx context.Context, p *player.Player, notice string) bool
}

type NodeProvider interface {
	RequireNode() (node.Node, error)
}

// TrackRecorder keeps the per-guild history of started tracks.
type TrackRecorder interface {
	RecordTrack(guildID string, t queue.Track) error
}

type Dispatcher struct {
	registry *player.Registry
	nodes    NodeProvider
	voice    music.VoiceGateway
	notifier music.Notifier
	term     Terminator
	recorder TrackRecorder

	delay         time.Duration
	nowPlayingTTL time.Duration
	log           zerolog.Logger
}

type Option func(*Dispatcher)

func WithAdvanceDelay(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d >= 0 {
			x.delay = d
		}
	}
}

func WithNowPlayingTTL(d time.Duration) Option {
	return func(x *Dispatcher) { x.nowPlayingTTL = d }
}

func WithTrackRecorder(r TrackRecorder) Option {
	return func(x *Dispatcher) { x.recorder = r }
}

func New(
	registry *player.Registry,
	nodes NodeProvider,
	voice music.VoiceGateway,
	notifier music.Notifier,
	term Terminator,
	log zerolog.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		registry:      registry,
		nodes:         nodes,
		voice:         voice,
		notifier:      notifier,
		term:          term,
		delay:         DefaultAdvanceDelay,
		nowPlayingTTL: DefaultNowPlayingTTL,
		log:           log.With().Str("module", "events").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleTrackStart quits when nobody is listening, otherwise announces the
// track.
func (d *Dispatcher) HandleTrackStart(ctx context.Context, guildID, encoded string) {
	p := d.lookup(guildID, encoded)
	if p == nil {
		return
	}
	log := d.log.With().Str("guild", guildID).Logger()

	humans, err := d.voice.HumanMembers(ctx, guildID, p.VoiceChannelID())
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Failed to count voice channel members")
	case humans == 0:
		log.Info().Msg("Track started in an empty voice channel")
		d.term.Terminate(ctx, p, music.NoticeAlone)
		return
	}

	if !d.alive(guildID, p) || !p.IsCurrent(encoded) {
		return
	}
	cur, ok := p.Current()
	if !ok {
		return
	}

	if d.recorder != nil {
		if err := d.recorder.RecordTrack(guildID, cur); err != nil {
			log.Warn().Err(err).Msg("Failed to record track history")
		}
	}

	suffix := ""
	if p.Loop() == player.LoopLooping {
		suffix = " (looping)"
	}
	msg := fmt.Sprintf("Now playing *%s*%s!", cur.Title, suffix)
	if err := d.notifier.Notify(ctx, guildID, p.TextChannelID(), msg, d.nowPlayingTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to announce track")
	}
}

// HandleTrackEnd advances the queue after a finished or stopped track and
// tears the player down on any other reason.
func (d *Dispatcher) HandleTrackEnd(ctx context.Context, guildID, encoded string, reason EndReason) {
	p := d.lookup(guildID, encoded)
	if p == nil {
		return
	}
	log := d.log.With().Str("guild", guildID).Str("reason", reason.String()).Logger()

	if !reason.Advances() {
		log.Error().Msg("Track ended abnormally")
		d.term.Terminate(ctx, p, music.NoticeFailure)
		return
	}

	next, ok, err := p.Advance()
	if err != nil {
		return
	}
	if !ok {
		log.Info().Msg("Queue exhausted")
		d.term.Terminate(ctx, p, music.NoticeQueueDone)
		return
	}

	if !d.wait(ctx) {
		// The node never gets next, so the player must not stay PLAYING.
		log.Warn().Str("track", next.Title).Msg("Advance cancelled")
		d.term.Terminate(context.WithoutCancel(ctx), p, music.NoticeFailure)
		return
	}
	// A quit or reap during the delay wins over the advance.
	if !d.alive(guildID, p) || !p.IsCurrent(next.Encoded) {
		log.Debug().Msg("Player changed during advance delay")
		return
	}

	n, err := d.nodes.RequireNode()
	if err == nil {
		err = n.Play(ctx, guildID, next)
	}
	if err != nil {
		log.Error().Err(err).Str("track", next.Title).Msg("Failed to start next track")
		d.term.Terminate(ctx, p, music.NoticeFailure)
	}
}

// OnTrackStart consumes a raw node event.
func (d *Dispatcher) OnTrackStart(ctx context.Context, guildID, encoded string) {
	d.HandleTrackStart(ctx, guildID, encoded)
}

// OnTrackEnd consumes a raw node event; unknown reasons are treated as
// failures.
func (d *Dispatcher) OnTrackEnd(ctx context.Context, guildID, encoded, reason string) {
	d.HandleTrackEnd(ctx, guildID, encoded, ParseEndReason(reason))
}

// lookup returns the guild's player when the event concerns its current track.
func (d *Dispatcher) lookup(guildID, encoded string) *player.Player {
	p, ok := d.registry.Get(guildID)
	if !ok || !p.IsCurrent(encoded) {
		d.log.Debug().Str("guild", guildID).Msg("Ignoring event for inactive track")
		return nil
	}
	return p
}

func (d *Dispatcher) alive(guildID string, p *player.Player) bool {
	cur, ok := d.registry.Get(guildID)
	return ok && cur == p && !p.Destroyed()
}

func (d *Dispatcher) wait(ctx context.Context) bool {
	if d.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
