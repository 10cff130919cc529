// Package middleware holds the cmd.Middleware chain applied to Discord
// commands: guild-only, cooldowns, permission checks and command logging.
package middleware

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
)

// reply is swapped in tests that have no live session.
var reply = func(s *discordgo.Session, e *discordgo.InteractionCreate, msg string) error {
	return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: msg, Color: bot.EmbedColor})
}
