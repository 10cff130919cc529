package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxRetries     = 5
	DefaultHealthInterval = time.Minute
)

// Supervisor owns the process-wide node connection.
type Supervisor struct {
	dial       Dialer
	maxRetries int
	interval   time.Duration
	log        zerolog.Logger

	// dialMu serializes dials so the health check and a manual reconnect never
	// race each other.
	dialMu sync.Mutex

	mu      sync.Mutex
	node    Node
	retries int
}

type Option func(*Supervisor)

func WithMaxRetries(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithHealthInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

func NewSupervisor(dial Dialer, log zerolog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		dial:       dial,
		maxRetries: DefaultMaxRetries,
		interval:   DefaultHealthInterval,
		log:        log.With().Str("module", "node").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect makes sure a node is connected. It does nothing when one already
// is. Failures are logged and reported as false, never returned.
func (s *Supervisor) Connect(ctx context.Context) bool {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.node != nil && s.node.Connected() {
		s.retries = 0
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	_, ok := s.replace(ctx)
	return ok
}

// HealthCheck is one tick of the automatic reconnect loop. It dials only while
// the consecutive retry counter is below the cap; past that it stays silent
// until ManualReconnect succeeds.
func (s *Supervisor) HealthCheck(ctx context.Context) {
	s.mu.Lock()
	if s.node != nil && s.node.Connected() {
		s.mu.Unlock()
		return
	}
	if s.retries >= s.maxRetries {
		s.mu.Unlock()
		return
	}
	s.retries++
	attempt := s.retries
	s.mu.Unlock()

	s.log.Info().Int("attempt", attempt).Int("max", s.maxRetries).Msg("Attempting to connect to a node...")
	s.Connect(ctx)
}

// ManualReconnect always dials a fresh node, ignoring the retry cap. On success
// the new node replaces the old one and the retry counter is reset.
func (s *Supervisor) ManualReconnect(ctx context.Context) (oldID, newID string, err error) {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.node != nil {
		oldID = s.node.ID()
	}
	s.mu.Unlock()

	s.log.Info().Str("old_node", oldID).Msg("Manual node reconnect requested")
	n, ok := s.replace(ctx)
	if !ok {
		return oldID, "", music.ErrNodeUnavailable
	}
	return oldID, n.ID(), nil
}

// replace dials and, on success, swaps the new node in. Caller holds dialMu.
func (s *Supervisor) replace(ctx context.Context) (Node, bool) {
	n, err := s.safeDial(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Node connection failed")
		return nil, false
	}
	if !n.Connected() {
		s.log.Error().Str("node", n.ID()).Msg("Node dialed but not connected")
		_ = n.Close()
		return nil, false
	}

	s.mu.Lock()
	old := s.node
	s.node = n
	s.retries = 0
	s.mu.Unlock()

	if old != nil && old != n {
		if err := old.Close(); err != nil {
			s.log.Warn().Err(err).Str("node", old.ID()).Msg("Failed to close replaced node")
		}
	}
	s.log.Info().Str("node", n.ID()).Msg("Node is ready!")
	return n, true
}

func (s *Supervisor) safeDial(ctx context.Context) (n Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("node dial panic: %v", r)
		}
	}()
	n, err = s.dial(ctx)
	if err == nil && n == nil {
		err = fmt.Errorf("dialer returned no node")
	}
	return n, err
}

// RequireNode returns the connected node or ErrNodeUnavailable.
func (s *Supervisor) RequireNode() (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.node == nil || !s.node.Connected() {
		return nil, music.ErrNodeUnavailable
	}
	return s.node, nil
}

func (s *Supervisor) Status() Status {
	if _, err := s.RequireNode(); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// Retries is the current consecutive automatic retry count.
func (s *Supervisor) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// NodeID is the identifier of the last connected node, or "".
func (s *Supervisor) NodeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.node == nil {
		return ""
	}
	return s.node.ID()
}

// Run performs the health check every interval until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.HealthCheck(ctx)
		}
	}
}

// Close tears the node down at process exit.
func (s *Supervisor) Close() error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	n := s.node
	s.node = nil
	s.mu.Unlock()

	if n == nil {
		return nil
	}
	return n.Close()
}
