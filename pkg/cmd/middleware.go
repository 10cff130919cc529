package cmd

// Middleware wraps a command (logging, permission checks, cooldowns). The
// wrapped value is still a Command.
type Middleware func(Command) Command

// Apply applies middlewares so that the first in the list is the outermost:
// Apply(c, a, b) runs a, then b, then c.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
