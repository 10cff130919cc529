// Package status serves a small read-only HTTP view of the bot: audio node
// health and the active players.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// NodeInfo reports the audio node connection.
type NodeInfo interface {
	Status() node.Status
	Retries() int
	NodeID() string
}

// Players lists the active players.
type Players interface {
	Snapshots() []player.Snapshot
}

type Server struct {
	addr    string
	nodes   NodeInfo
	players Players
	log     zerolog.Logger
}

func New(addr string, nodes NodeInfo, players Players, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		nodes:   nodes,
		players: players,
		log:     log.With().Str("module", "status").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.health)
	r.GET("/players", s.listPlayers)
	return r
}

func (s *Server) health(c *gin.Context) {
	st := s.nodes.Status()
	code := http.StatusOK
	if st != node.StatusConnected {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"node":    st,
		"node_id": s.nodes.NodeID(),
		"retries": s.nodes.Retries(),
	})
}

func (s *Server) listPlayers(c *gin.Context) {
	snaps := s.players.Snapshots()
	c.JSON(http.StatusOK, gin.H{"count": len(snaps), "players": snaps})
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("Shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("Status server shutdown")
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("Status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
