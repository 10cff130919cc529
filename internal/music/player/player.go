package player

import (
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/queue"
)

type State string

const (
	StateEmpty   State = "Empty"
	StatePlaying State = "Playing"
	StatePaused  State = "Paused"
)

type LoopMode int

const (
	LoopNormal LoopMode = iota
	LoopLooping
)

func (m LoopMode) String() string {
	if m == LoopLooping {
		return "looping"
	}
	return "normal"
}

// Player is the playback state of one guild's voice session. All methods are
// safe for concurrent use; none of them performs I/O.
type Player struct {
	mu             sync.Mutex
	guildID        string
	voiceChannelID string
	textChannelID  string
	queue          queue.Queue
	current        *queue.Track
	paused         bool
	loop           LoopMode
	destroyed      bool
	createdAt      time.Time
}

// New creates an empty player bound to a voice channel and a text channel.
func New(guildID, voiceChannelID, textChannelID string) *Player {
	return &Player{
		guildID:        guildID,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		createdAt:      time.Now(),
	}
}

func (p *Player) GuildID() string        { return p.guildID }
func (p *Player) VoiceChannelID() string { return p.voiceChannelID }
func (p *Player) TextChannelID() string  { return p.textChannelID }

// CheckChannel rejects callers that are not in the player's voice channel.
func (p *Player) CheckChannel(channelID string) error {
	if channelID == "" || channelID != p.voiceChannelID {
		return music.ErrWrongChannel
	}
	return nil
}

// State reports EMPTY, PLAYING or PAUSED.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Player) stateLocked() State {
	switch {
	case p.current == nil:
		return StateEmpty
	case p.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// Current returns the current track, if any.
func (p *Player) Current() (queue.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return queue.Track{}, false
	}
	return *p.current, true
}

// IsCurrent reports whether the node track identified by encoded is this
// player's current track. An empty handle on either side matches any track.
func (p *Player) IsCurrent(encoded string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed || p.current == nil {
		return false
	}
	return encoded == "" || p.current.Encoded == "" || p.current.Encoded == encoded
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) Loop() LoopMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

func (p *Player) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

func (p *Player) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Enqueue appends t. When nothing is playing, t becomes the current track
// straight away and started is true; the caller then starts it on the node.
func (p *Player) Enqueue(t queue.Track) (started bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return false, music.ErrNoPlayer
	}
	if p.current == nil {
		p.current = &t
		p.paused = false
		return true, nil
	}
	p.queue.Push(t)
	return false, nil
}

// SetPaused records the pause state. Without a current track it is a no-op.
func (p *Player) SetPaused(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return music.ErrNoPlayer
	}
	if p.current == nil {
		return music.ErrNotPlaying
	}
	p.paused = paused
	return nil
}

// TogglePause flips the pause state and returns the new one.
func (p *Player) TogglePause() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return false, music.ErrNoPlayer
	}
	if p.current == nil {
		return p.paused, music.ErrNotPlaying
	}
	p.paused = !p.paused
	return p.paused, nil
}

// SetLoop puts back a loop mode, e.g. after a skip the node refused.
func (p *Player) SetLoop(m LoopMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return music.ErrNoPlayer
	}
	if p.current == nil {
		return music.ErrNotPlaying
	}
	p.loop = m
	return nil
}

// Skip prepares the current track to be stopped. Loop mode always ends up
// NORMAL; wasLooping reports the mode before the skip.
func (p *Player) Skip() (wasLooping bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return false, music.ErrNoPlayer
	}
	wasLooping = p.loop == LoopLooping
	p.loop = LoopNormal
	if p.current == nil {
		return wasLooping, music.ErrNotPlaying
	}
	return wasLooping, nil
}

// ToggleLoop flips the loop mode. It needs a current track.
func (p *Player) ToggleLoop() (LoopMode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return p.loop, music.ErrNoPlayer
	}
	if p.current == nil {
		return p.loop, music.ErrNotPlaying
	}
	if p.loop == LoopNormal {
		p.loop = LoopLooping
	} else {
		p.loop = LoopNormal
	}
	return p.loop, nil
}

// Advance is applied when the current track ended normally. In loop mode the
// finished track goes back to the front of the queue first. The popped track
// becomes current; ok is false when the queue was exhausted, which leaves the
// player EMPTY.
func (p *Player) Advance() (next queue.Track, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return queue.Track{}, false, music.ErrNoPlayer
	}
	if p.current != nil && p.loop == LoopLooping && !p.current.LoopExempt {
		p.queue.PushFront(*p.current)
	}

	p.paused = false
	next, ok = p.queue.Pop()
	if !ok {
		p.current = nil
		return queue.Track{}, false, nil
	}
	p.current = &next
	return next, true, nil
}

// Quit clears everything and marks the player destroyed. It returns the number
// of queued tracks that were dropped.
func (p *Player) Quit() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.destroyed = true
	p.current = nil
	p.paused = false
	p.loop = LoopNormal
	return p.queue.Clear()
}

// Snapshot is a point-in-time copy of a player for listings.
type Snapshot struct {
	GuildID        string        `json:"guild_id"`
	VoiceChannelID string        `json:"voice_channel_id"`
	State          State         `json:"state"`
	Current        *queue.Track  `json:"current,omitempty"`
	Upcoming       []queue.Track `json:"upcoming"`
	Total          int           `json:"queue_length"`
	Paused         bool          `json:"paused"`
	Looping        bool          `json:"looping"`
	Since          time.Time     `json:"since"`
}

// Snapshot copies at most limit upcoming tracks; Total is the real length.
func (p *Player) Snapshot(limit int) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		GuildID:        p.guildID,
		VoiceChannelID: p.voiceChannelID,
		State:          p.stateLocked(),
		Upcoming:       p.queue.Head(limit),
		Total:          p.queue.Len(),
		Paused:         p.paused,
		Looping:        p.loop == LoopLooping,
		Since:          p.createdAt,
	}
	if p.current != nil {
		cur := *p.current
		s.Current = &cur
	}
	return s
}
