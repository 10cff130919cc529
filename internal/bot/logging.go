package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/rs/zerolog"
)

// LogCommand records a command execution to storage, resolving channel and
// guild names from state first and the API second.
func LogCommand(s *discordgo.Session, store *storage.Storage, log zerolog.Logger, guildID, channelID, userID, username, commandName, param string) error {
	channelName := ""
	channel, err := s.State.Channel(channelID)
	if err != nil {
		channel, err = s.Channel(channelID)
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("failed to fetch channel")
	} else {
		channelName = channel.Name
	}

	guildName := ""
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
	}
	if err != nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("failed to fetch guild")
	} else {
		guildName = guild.Name
	}

	return store.AppendCommandToHistory(guildID, storage.CommandHistoryRecord{
		ChannelID:   channelID,
		ChannelName: channelName,
		GuildName:   guildName,
		UserID:      userID,
		Username:    username,
		Command:     commandName,
		Param:       param,
		Datetime:    time.Now(),
	})
}
