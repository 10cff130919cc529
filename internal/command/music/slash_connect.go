package music

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music"
	"github.com/rs/zerolog"
)

// ConnectCommand lets the bot owner force a fresh audio node connection.
type ConnectCommand struct {
	Music Service
	Log   zerolog.Logger
}

func (c *ConnectCommand) Name() string { return "connect-music" }
func (c *ConnectCommand) Description() string {
	return "(OWNER ONLY) Use this if the music player is not working"
}
func (c *ConnectCommand) Group() string            { return "music" }
func (c *ConnectCommand) Category() string         { return "🛠️ Maintenance" }
func (c *ConnectCommand) UserPermissions() []int64 { return []int64{} }

func (c *ConnectCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *ConnectCommand) Run(ctx context.Context, data any) error {
	v, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := v.Session, v.Event
	user := bot.InteractionUser(e)
	caller := music.Caller{UserID: user.ID, Name: bot.DisplayName(e), Privileged: config.IsDeveloper(v.Config, user.ID)}

	if !caller.Privileged {
		return bot.Respond(s, e, errorText(music.ErrNotPrivileged))
	}
	if err := bot.RespondDeferred(s, e); err != nil {
		return err
	}
	return bot.Followup(s, e, c.reconnect(ctx, caller))
}

func (c *ConnectCommand) reconnect(ctx context.Context, caller music.Caller) string {
	oldID, newID, err := c.Music.ManualReconnect(ctx, caller)
	if err != nil {
		c.Log.Warn().Err(err).Str("user", caller.UserID).Msg("manual node reconnect failed")
		return "Reconnection failed."
	}
	c.Log.Info().Str("old", oldID).Str("new", newID).Msg("manual node reconnect succeeded")
	return "Connection successful."
}
