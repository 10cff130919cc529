// Command build-readme renders README.md from README.md.tmpl with the list of
// slash commands.
package main

import (
	"log"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/docs"
	"github.com/keshon/jukebox/pkg/cmd"
)

func main() {
	// Only names and descriptions are read, so the commands need no services.
	command.RegisterCommand(&music.MusicCommand{})
	command.RegisterCommand(&music.ConnectCommand{})
	command.RegisterCommand(&core.HelpCommand{Registry: cmd.DefaultRegistry})
	command.RegisterCommand(&core.PingCommand{})

	if err := docs.UpdateReadme(cmd.DefaultRegistry, config.CategoryWeights, "README.md.tmpl", "README.md"); err != nil {
		log.Fatalf("[ERR] %v", err)
	}
	log.Println("[DONE] README.md updated")
}
