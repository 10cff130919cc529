// Package coordinator exposes the music operations invoked by users. Each
// operation validates the caller and the node before touching player state,
// so a rejected call never mutates anything.
package coordinator

import (
	"context"
	"fmt"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/pkg/util"
	"github.com/rs/zerolog"
)

// MaxListed caps the upcoming tracks returned by ListQueue.
const MaxListed = 20

const shutdownWorkers = 4

type Nodes interface {
	RequireNode() (node.Node, error)
	ManualReconnect(ctx context.Context) (oldID, newID string, err error)
}

type Coordinator struct {
	registry *player.Registry
	nodes    Nodes
	voice    music.VoiceGateway
	notifier music.Notifier
	log      zerolog.Logger
}

func New(registry *player.Registry, nodes Nodes, voice music.VoiceGateway, notifier music.Notifier, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		nodes:    nodes,
		voice:    voice,
		notifier: notifier,
		log:      log.With().Str("module", "coordinator").Logger(),
	}
}

// PlayResult describes an accepted play request.
type PlayResult struct {
	Track   queue.Track
	Started bool
	// LoopingTitle is the current track's title when the player is looping.
	LoopingTitle string
}

// Play resolves query on the node and queues the first result, creating the
// guild's player and joining the caller's voice channel when needed.
func (c *Coordinator) Play(ctx context.Context, guildID string, caller music.Caller, textChannelID, query string) (PlayResult, error) {
	n, err := c.nodes.RequireNode()
	if err != nil {
		return PlayResult{}, err
	}
	vc, ok := c.voice.UserVoiceChannel(guildID, caller.UserID)
	if !ok || vc == "" {
		return PlayResult{}, music.ErrNotInVoice
	}
	if p, ok := c.registry.Get(guildID); ok {
		if err := p.CheckChannel(vc); err != nil {
			return PlayResult{}, err
		}
	}

	tracks, err := n.Search(ctx, query)
	if err != nil {
		c.log.Warn().Err(err).Str("guild", guildID).Str("query", query).Msg("Search failed")
		return PlayResult{}, fmt.Errorf("%w: %w", music.ErrInvalidQuery, err)
	}
	if len(tracks) == 0 {
		return PlayResult{}, music.ErrInvalidQuery
	}
	t := tracks[0]
	t.Requester = caller.Name

	p, created := c.registry.GetOrCreate(guildID, func() *player.Player {
		return player.New(guildID, vc, textChannelID)
	})
	if created {
		if err := c.voice.Join(ctx, guildID, vc); err != nil {
			// A concurrent Play may already have started a track on the node.
			c.Terminate(ctx, p, "")
			return PlayResult{}, fmt.Errorf("join voice channel: %w", err)
		}
		c.log.Info().Str("guild", guildID).Str("channel", vc).Msg("Player created")
	} else if err := p.CheckChannel(vc); err != nil {
		return PlayResult{}, err
	}

	started, err := p.Enqueue(t)
	if err != nil {
		return PlayResult{}, err
	}
	res := PlayResult{Track: t, Started: started}

	if started {
		if err := n.Play(ctx, guildID, t); err != nil {
			c.log.Error().Err(err).Str("guild", guildID).Str("track", t.Title).Msg("Failed to start playback")
			c.Terminate(ctx, p, music.NoticeFailure)
			return res, fmt.Errorf("start playback: %w", err)
		}
	}
	if p.Loop() == player.LoopLooping {
		if cur, ok := p.Current(); ok {
			res.LoopingTitle = cur.Title
		}
	}
	return res, nil
}

// PauseOrResume flips the pause state and returns the new one.
func (c *Coordinator) PauseOrResume(ctx context.Context, guildID string, caller music.Caller) (bool, error) {
	p, err := c.guarded(guildID, caller)
	if err != nil {
		return false, err
	}
	if _, ok := p.Current(); !ok {
		return p.Paused(), music.ErrNotPlaying
	}
	n, err := c.nodes.RequireNode()
	if err != nil {
		return p.Paused(), err
	}

	target, err := p.TogglePause()
	if err != nil {
		return target, err
	}
	if err := n.Pause(ctx, guildID, target); err != nil {
		_ = p.SetPaused(!target)
		return !target, fmt.Errorf("pause: %w", err)
	}
	return target, nil
}

// Skip stops the current track; the node's stop event advances the queue.
func (c *Coordinator) Skip(ctx context.Context, guildID string, caller music.Caller) (wasLooping bool, err error) {
	p, err := c.guarded(guildID, caller)
	if err != nil {
		return false, err
	}
	n, err := c.nodes.RequireNode()
	if err != nil {
		return false, err
	}

	wasLooping, err = p.Skip()
	if err != nil {
		return wasLooping, err
	}
	// Loop is reset before the stop so the node's stop event cannot replay
	// the track; a refused stop restores it.
	if err := n.Stop(ctx, guildID); err != nil {
		if wasLooping {
			_ = p.SetLoop(player.LoopLooping)
		}
		return wasLooping, fmt.Errorf("stop: %w", err)
	}
	return wasLooping, nil
}

func (c *Coordinator) ToggleLoop(_ context.Context, guildID string, caller music.Caller) (bool, error) {
	p, err := c.guarded(guildID, caller)
	if err != nil {
		return false, err
	}
	mode, err := p.ToggleLoop()
	return mode == player.LoopLooping, err
}

// Quit tears the guild's player down without a notice.
func (c *Coordinator) Quit(ctx context.Context, guildID string, caller music.Caller) error {
	p, err := c.guarded(guildID, caller)
	if err != nil {
		return err
	}
	if !c.Terminate(ctx, p, "") {
		return music.ErrNoPlayer
	}
	return nil
}

// ListQueue returns the player's state with at most MaxListed upcoming tracks.
func (c *Coordinator) ListQueue(guildID string) (player.Snapshot, error) {
	p, ok := c.registry.Get(guildID)
	if !ok {
		return player.Snapshot{}, music.ErrNoPlayer
	}
	return p.Snapshot(MaxListed), nil
}

// Snapshots lists every active player.
func (c *Coordinator) Snapshots() []player.Snapshot {
	all := c.registry.All()
	out := make([]player.Snapshot, 0, len(all))
	for _, p := range all {
		out = append(out, p.Snapshot(MaxListed))
	}
	return out
}

func (c *Coordinator) ManualReconnect(ctx context.Context, caller music.Caller) (oldID, newID string, err error) {
	if !caller.Privileged {
		return "", "", music.ErrNotPrivileged
	}
	return c.nodes.ManualReconnect(ctx)
}

// Terminate removes p from the registry, clears it and releases the node
// player and the voice connection. A non-empty notice is sent to the bound
// text channel. It returns false when p was no longer registered.
func (c *Coordinator) Terminate(ctx context.Context, p *player.Player, notice string) bool {
	guildID := p.GuildID()
	if !c.registry.Remove(guildID, p) {
		return false
	}
	dropped := p.Quit()
	c.log.Info().Str("guild", guildID).Int("dropped", dropped).Msg("Player destroyed")

	if notice != "" {
		if err := c.notifier.Notify(ctx, guildID, p.TextChannelID(), notice, 0); err != nil {
			c.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to send notice")
		}
	}
	if n, err := c.nodes.RequireNode(); err == nil {
		if err := n.Destroy(ctx, guildID); err != nil {
			c.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to destroy node player")
		}
	}
	if err := c.voice.Leave(ctx, guildID); err != nil {
		c.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to leave voice channel")
	}
	return true
}

// Shutdown destroys every player.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return util.Parallel(ctx, c.registry.All(), shutdownWorkers, func(ctx context.Context, p *player.Player) error {
		c.Terminate(ctx, p, "")
		return nil
	})
}

// guarded returns the guild's player when the caller shares its voice channel.
func (c *Coordinator) guarded(guildID string, caller music.Caller) (*player.Player, error) {
	p, ok := c.registry.Get(guildID)
	if !ok {
		return nil, music.ErrNoPlayer
	}
	vc, _ := c.voice.UserVoiceChannel(guildID, caller.UserID)
	if err := p.CheckChannel(vc); err != nil {
		return nil, err
	}
	return p, nil
}
