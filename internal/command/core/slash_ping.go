package core

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/node"
)

// NodeStatus reports the audio node connection for /ping.
type NodeStatus interface {
	Status() node.Status
	NodeID() string
}

type PingCommand struct {
	Node NodeStatus
}

func (c *PingCommand) Name() string             { return "ping" }
func (c *PingCommand) Description() string      { return "Check bot latency and the music server" }
func (c *PingCommand) Group() string            { return "core" }
func (c *PingCommand) Category() string         { return "🛠️ Maintenance" }
func (c *PingCommand) UserPermissions() []int64 { return []int64{} }

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *PingCommand) Run(_ context.Context, data any) error {
	v, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	latency := v.Session.HeartbeatLatency().Milliseconds()
	return bot.Respond(v.Session, v.Event, fmt.Sprintf("🏓 Pong! %dms\n%s", latency, c.nodeLine()))
}

func (c *PingCommand) nodeLine() string {
	if c.Node == nil || c.Node.Status() != node.StatusConnected {
		return "Music server: offline"
	}
	return fmt.Sprintf("Music server: %s", c.Node.NodeID())
}
