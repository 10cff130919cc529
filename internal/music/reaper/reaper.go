// Package reaper destroys players whose voice channel has no human listeners
// left.
package reaper

import (
	"context"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/rs/zerolog"
)

const DefaultInterval = time.Minute

type Terminator interface {
	Terminate(ctx context.Context, p *player.Player, notice string) bool
}

type Reaper struct {
	registry *player.Registry
	voice    music.VoiceGateway
	term     Terminator
	interval time.Duration
	log      zerolog.Logger
}

func New(registry *player.Registry, voice music.VoiceGateway, term Terminator, interval time.Duration, log zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		registry: registry,
		voice:    voice,
		term:     term,
		interval: interval,
		log:      log.With().Str("module", "reaper").Logger(),
	}
}

// Sweep inspects every non-empty player once and returns how many it
// destroyed.
func (r *Reaper) Sweep(ctx context.Context) int {
	reaped := 0
	for _, p := range r.registry.All() {
		if ctx.Err() != nil {
			break
		}
		if p.State() == player.StateEmpty {
			continue
		}

		humans, err := r.voice.HumanMembers(ctx, p.GuildID(), p.VoiceChannelID())
		if err != nil {
			r.log.Warn().Err(err).Str("guild", p.GuildID()).Msg("Failed to count voice channel members")
			continue
		}
		if humans > 0 {
			continue
		}
		if r.term.Terminate(ctx, p, music.NoticeAlone) {
			r.log.Info().Str("guild", p.GuildID()).Msg("Reaped idle player")
			reaped++
		}
	}
	return reaped
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
