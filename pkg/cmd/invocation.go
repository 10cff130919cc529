// Package cmd is the transport-agnostic command core: a command has a name, a
// description and Run(ctx, invocation). Registration and dispatch for a
// concrete transport (Discord slash commands, the CLI) live in adapters.
package cmd

import "context"

// Invocation carries the arguments and an opaque payload. Adapters set Data to
// their own context, e.g. the Discord session plus the interaction event.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
