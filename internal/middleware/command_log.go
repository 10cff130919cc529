package middleware

import (
	"context"
	"strings"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/rs/zerolog"
)

// WithCommandLogger logs each execution and appends it to the guild's
// command history.
func WithCommandLogger(log zerolog.Logger) cmd.Middleware {
	log = log.With().Str("module", "commands").Logger()
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return err
			}
			e := v.Event
			user := bot.InteractionUser(e)
			param := strings.Join(v.Args, " ")

			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("guild", e.GuildID).Str("user", user.Username).Str("command", c.Name()).Str("args", param).Msg("command executed")

			if v.Storage != nil && e.GuildID != "" {
				if lerr := bot.LogCommand(v.Session, v.Storage, log, e.GuildID, e.ChannelID, user.ID, user.Username, c.Name(), param); lerr != nil {
					log.Warn().Err(lerr).Str("command", c.Name()).Msg("failed to record command")
				}
			}
			return err
		})
	}
}
