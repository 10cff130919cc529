package middleware

import (
	"context"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// WithCooldown rejects a user's repeated invocations of the same command
// until the limiter refills. Callers for which exempt returns true skip it.
func WithCooldown(l *command.Limiter, exempt func(*command.SlashInteractionContext) bool) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return c.Run(ctx, inv)
			}
			if exempt != nil && exempt(v) {
				return c.Run(ctx, inv)
			}
			user := bot.InteractionUser(v.Event)
			if user == nil {
				return c.Run(ctx, inv)
			}
			if !l.Allow(command.CooldownKey(c.Name(), user.ID)) {
				return reply(v.Session, v.Event, "You are doing that too fast. Try again in a few seconds.")
			}
			return c.Run(ctx, inv)
		})
	}
}
