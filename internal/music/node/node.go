// Package node supervises the connection to the external audio node: it dials,
// tracks status and runs the bounded automatic reconnect loop.
package node

import (
	"context"

	"github.com/keshon/jukebox/internal/music/queue"
)

// Node is one connection to an audio-processing node.
type Node interface {
	ID() string
	Connected() bool
	Search(ctx context.Context, query string) ([]queue.Track, error)
	Play(ctx context.Context, guildID string, t queue.Track) error
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string, paused bool) error
	Destroy(ctx context.Context, guildID string) error
	// UpdateVoice forwards the chat platform's voice credentials so the node
	// can open the stream into the voice channel.
	UpdateVoice(ctx context.Context, guildID string, v Voice) error
	Close() error
}

// Voice carries the voice server credentials of one guild session.
type Voice struct {
	SessionID string
	Token     string
	Endpoint  string
}

// Dialer opens a new node connection.
type Dialer func(ctx context.Context) (Node, error)

type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnected    Status = "CONNECTED"
)
