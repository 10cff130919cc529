package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeNodes struct {
	status  node.Status
	retries int
	id      string
}

func (f fakeNodes) Status() node.Status { return f.status }
func (f fakeNodes) Retries() int        { return f.retries }
func (f fakeNodes) NodeID() string      { return f.id }

type fakePlayers []player.Snapshot

func (f fakePlayers) Snapshots() []player.Snapshot { return f }

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		node fakeNodes
		code int
	}{
		{"connected", fakeNodes{status: node.StatusConnected, id: "main"}, http.StatusOK},
		{"disconnected", fakeNodes{status: node.StatusDisconnected, retries: 3}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", tt.node, fakePlayers{}, zerolog.Nop())
			rec, body := get(t, s, "/healthz")
			if rec.Code != tt.code {
				t.Errorf("code: got %d want %d", rec.Code, tt.code)
			}
			if body["node"] != string(tt.node.status) || body["retries"] != float64(tt.node.retries) {
				t.Errorf("body: %v", body)
			}
		})
	}
}

func TestPlayers(t *testing.T) {
	players := fakePlayers{
		{GuildID: "g1", VoiceChannelID: "v1", Total: 2},
		{GuildID: "g2", VoiceChannelID: "v2"},
	}
	s := New(":0", fakeNodes{status: node.StatusConnected}, players, zerolog.Nop())

	rec, body := get(t, s, "/players")
	if rec.Code != http.StatusOK {
		t.Fatalf("code: %d", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Errorf("count: %v", body["count"])
	}
	list, ok := body["players"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("players: %v", body["players"])
	}
	first := list[0].(map[string]any)
	if first["guild_id"] != "g1" || first["queue_length"] != float64(2) {
		t.Errorf("first player: %v", first)
	}
}
