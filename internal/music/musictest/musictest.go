// Package musictest provides in-memory fakes of the playback collaborators
// for tests.
package musictest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
)

var ErrFake = errors.New("fake failure")

// Node records every call made against it.
type Node struct {
	mu        sync.Mutex
	id        string
	connected bool
	catalog   map[string]queue.Track
	calls     []string
	played    []queue.Track
	closed    bool
	failPlay  bool
	failStop  bool
	failPause bool
}

func NewNode(id string) *Node {
	return &Node{id: id, connected: true, catalog: make(map[string]queue.Track)}
}

// Add makes query resolvable to a track titled like the query.
func (n *Node) Add(query string) queue.Track {
	t := queue.Track{
		Title:    query,
		URI:      "https://example.com/" + strings.ReplaceAll(query, " ", "-"),
		Duration: 3 * time.Minute,
		Encoded:  "enc:" + query,
	}
	n.mu.Lock()
	n.catalog[query] = t
	n.mu.Unlock()
	return t
}

func (n *Node) SetConnected(v bool) {
	n.mu.Lock()
	n.connected = v
	n.mu.Unlock()
}

func (n *Node) FailPlay(v bool) {
	n.mu.Lock()
	n.failPlay = v
	n.mu.Unlock()
}

func (n *Node) FailStop(v bool) {
	n.mu.Lock()
	n.failStop = v
	n.mu.Unlock()
}

func (n *Node) FailPause(v bool) {
	n.mu.Lock()
	n.failPause = v
	n.mu.Unlock()
}

func (n *Node) record(format string, args ...any) {
	n.calls = append(n.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls, e.g. "play g1 Song A".
func (n *Node) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// Played returns the tracks passed to Play, in order.
func (n *Node) Played() []queue.Track {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]queue.Track(nil), n.played...)
}

func (n *Node) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *Node) ID() string { return n.id }

func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected && !n.closed
}

func (n *Node) Search(_ context.Context, query string) ([]queue.Track, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("search %s", query)
	t, ok := n.catalog[query]
	if !ok {
		return nil, nil
	}
	return []queue.Track{t}, nil
}

func (n *Node) Play(_ context.Context, guildID string, t queue.Track) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("play %s %s", guildID, t.Title)
	if n.failPlay {
		return ErrFake
	}
	n.played = append(n.played, t)
	return nil
}

func (n *Node) Stop(_ context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("stop %s", guildID)
	if n.failStop {
		return ErrFake
	}
	return nil
}

func (n *Node) Pause(_ context.Context, guildID string, paused bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("pause %s %v", guildID, paused)
	if n.failPause {
		return ErrFake
	}
	return nil
}

func (n *Node) Destroy(_ context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("destroy %s", guildID)
	return nil
}

func (n *Node) UpdateVoice(_ context.Context, guildID string, v node.Voice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("voice %s %s", guildID, v.Endpoint)
	return nil
}

func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

// Nodes is a fixed NodeProvider.
type Nodes struct {
	mu   sync.Mutex
	Node *Node
}

func (p *Nodes) RequireNode() (node.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Node == nil || !p.Node.Connected() {
		return nil, errNoNode
	}
	return p.Node, nil
}

var errNoNode = fmt.Errorf("fake: %w", errors.New("no node"))

// Voice is an in-memory voice gateway. Members maps channel IDs to human
// member counts, users maps user IDs to the voice channel they sit in.
type Voice struct {
	mu      sync.Mutex
	members map[string]int
	users   map[string]string
	joined  map[string]string
	left    []string
	JoinErr error
}

func NewVoice() *Voice {
	return &Voice{
		members: make(map[string]int),
		users:   make(map[string]string),
		joined:  make(map[string]string),
	}
}

// Seat puts a human user into a voice channel.
func (v *Voice) Seat(userID, channelID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if prev, ok := v.users[userID]; ok {
		v.members[prev]--
	}
	v.users[userID] = channelID
	v.members[channelID]++
}

// Empty removes every human from a channel.
func (v *Voice) Empty(channelID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for u, ch := range v.users {
		if ch == channelID {
			delete(v.users, u)
		}
	}
	v.members[channelID] = 0
}

func (v *Voice) UserVoiceChannel(_, userID string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.users[userID]
	return ch, ok
}

func (v *Voice) HumanMembers(_ context.Context, _, channelID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.members[channelID], nil
}

func (v *Voice) Join(_ context.Context, guildID, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.JoinErr != nil {
		return v.JoinErr
	}
	v.joined[guildID] = channelID
	return nil
}

func (v *Voice) Leave(_ context.Context, guildID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.joined, guildID)
	v.left = append(v.left, guildID)
	return nil
}

// Joined reports the channel the bot sits in for guildID.
func (v *Voice) Joined(guildID string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.joined[guildID]
	return ch, ok
}

func (v *Voice) Left() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.left...)
}

// Notice is one delivered notification.
type Notice struct {
	GuildID   string
	ChannelID string
	Content   string
	TTL       time.Duration
}

type Notifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *Notifier) Notify(_ context.Context, guildID, channelID, content string, ttl time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{guildID, channelID, content, ttl})
	return nil
}

func (n *Notifier) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// Contains reports whether any notice contains substr.
func (n *Notifier) Contains(substr string) bool {
	for _, no := range n.Notices() {
		if strings.Contains(no.Content, substr) {
			return true
		}
	}
	return false
}

// Terminator mirrors the coordinator's teardown without touching the node or
// voice gateway.
type Terminator struct {
	Registry *player.Registry
	Notifier *Notifier

	mu      sync.Mutex
	notices []string
}

func (t *Terminator) Terminate(ctx context.Context, p *player.Player, notice string) bool {
	if !t.Registry.Remove(p.GuildID(), p) {
		return false
	}
	p.Quit()
	t.mu.Lock()
	t.notices = append(t.notices, notice)
	t.mu.Unlock()
	if t.Notifier != nil {
		_ = t.Notifier.Notify(ctx, p.GuildID(), p.TextChannelID(), notice, 0)
	}
	return true
}

// Terminated returns the notices of every teardown, in order.
func (t *Terminator) Terminated() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.notices...)
}
