package core

import (
	"strings"
	"testing"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/pkg/cmd"
)

type nodeState struct {
	status node.Status
	id     string
}

func (n nodeState) Status() node.Status { return n.status }
func (n nodeState) NodeID() string      { return n.id }

func TestHelpListsByCategory(t *testing.T) {
	reg := cmd.NewRegistry()
	reg.Register(&command.DiscordAdapter{Cmd: &PingCommand{}})
	reg.Register(&command.DiscordAdapter{Cmd: &HelpCommand{Registry: reg}})

	text := helpText(reg)
	info := strings.Index(text, "**🕯️ Information**")
	maint := strings.Index(text, "**🛠️ Maintenance**")
	if info < 0 || maint < 0 || info > maint {
		t.Fatalf("category order wrong:\n%s", text)
	}
	if !strings.Contains(text, "`/ping` - Check bot latency and the music server") {
		t.Errorf("ping entry missing:\n%s", text)
	}
}

func TestPingNodeLine(t *testing.T) {
	tests := []struct {
		node NodeStatus
		want string
	}{
		{nil, "Music server: offline"},
		{nodeState{node.StatusDisconnected, "main-1"}, "Music server: offline"},
		{nodeState{node.StatusConnected, "main-1"}, "Music server: main-1"},
	}
	for _, tt := range tests {
		c := &PingCommand{Node: tt.node}
		if got := c.nodeLine(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
