// Command cli inspects the bot's datastore from a shell:
//
//	cli tracks <guildID>
//	cli commands <guildID>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

var errUsage = errors.New("usage: cli <tracks|commands> <guildID>")

type tracksCommand struct {
	store *storage.Storage
	out   io.Writer
}

func (c *tracksCommand) Name() string        { return "tracks" }
func (c *tracksCommand) Description() string { return "Recently played tracks of a guild" }

func (c *tracksCommand) Run(_ context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) != 1 {
		return errUsage
	}
	tracks, err := c.store.FetchTrackHistory(inv.Args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYED\tTITLE\tDURATION\tREQUESTER")
	for _, t := range tracks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.PlayedAt.Format(time.DateTime), t.Title, t.Duration, t.Requester)
	}
	return w.Flush()
}

type commandsCommand struct {
	store *storage.Storage
	out   io.Writer
}

func (c *commandsCommand) Name() string        { return "commands" }
func (c *commandsCommand) Description() string { return "Recent slash command usage of a guild" }

func (c *commandsCommand) Run(_ context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) != 1 {
		return errUsage
	}
	records, err := c.store.FetchCommandHistory(inv.Args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tCOMMAND\tPARAM")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Datetime.Format(time.DateTime), r.Username, r.Command, r.Param)
	}
	return w.Flush()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	storagePath := os.Getenv("STORAGE_PATH")
	if cfg, err := config.Load(); err == nil {
		storagePath = cfg.StoragePath
	}
	if storagePath == "" {
		storagePath = "datastore.json"
	}

	store, err := storage.New(storagePath)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := cmd.NewRegistry()
	reg.Register(&tracksCommand{store: store, out: os.Stdout})
	reg.Register(&commandsCommand{store: store, out: os.Stdout})

	c := reg.Get(args[0])
	if c == nil {
		for _, known := range reg.GetAll() {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", known.Name(), known.Description())
		}
		return errUsage
	}
	return c.Run(context.Background(), &cmd.Invocation{Args: args[1:]})
}
