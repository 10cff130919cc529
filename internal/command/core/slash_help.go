package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/docs"
	"github.com/keshon/jukebox/pkg/cmd"
)

type HelpCommand struct {
	Registry *cmd.Registry
}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "Get a list of available commands" }
func (c *HelpCommand) Group() string            { return "core" }
func (c *HelpCommand) Category() string         { return "🕯️ Information" }
func (c *HelpCommand) UserPermissions() []int64 { return []int64{} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *HelpCommand) Run(_ context.Context, data any) error {
	v, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	return bot.RespondEmbedEphemeral(v.Session, v.Event, &discordgo.MessageEmbed{
		Title:       "Jukebox Help",
		Description: helpText(c.Registry),
		Color:       bot.EmbedColor,
	})
}

func helpText(reg *cmd.Registry) string {
	var sb strings.Builder
	for _, s := range docs.Sections(reg, config.CategoryWeights) {
		fmt.Fprintf(&sb, "**%s**\n", s.Category)
		for _, e := range s.Commands {
			fmt.Fprintf(&sb, "`%s` - %s\n", e.Name, e.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
