package music

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/storage"
)

func queueEmbed(guildName string, s player.Snapshot) *discordgo.MessageEmbed {
	size := "Empty"
	if s.Total > 0 {
		size = fmt.Sprint(s.Total)
	}

	var sb strings.Builder
	if s.Current != nil {
		sb.WriteString("**__CURRENTLY PLAYING__**\n")
		sb.WriteString(trackLine(*s.Current))
		sb.WriteString("\n")
	}
	if len(s.Upcoming) > 0 {
		sb.WriteString("**__ON QUEUE__**\n")
		for i, t := range s.Upcoming {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, trackLine(t))
		}
		if more := s.Total - len(s.Upcoming); more > 0 {
			fmt.Fprintf(&sb, "...and %d more\n", more)
		}
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Queue for server %s", guildName),
		Description: sb.String(),
		Color:       bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Queue size", Value: size, Inline: true},
			{Name: "Paused", Value: fmt.Sprint(s.Paused), Inline: true},
			{Name: "Looping", Value: fmt.Sprint(s.Looping), Inline: true},
		},
	}
}

func trackLine(t queue.Track) string {
	title := t.Title
	if t.URI != "" {
		title = fmt.Sprintf("[%s](%s)", t.Title, t.URI)
	}
	return fmt.Sprintf("%s\n(%s - requested by %s)", title, t.Length(), t.Requester)
}

func historyEmbed(tracks []storage.TrackHistoryRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "Recently played", Color: bot.EmbedColor}
	if len(tracks) == 0 {
		embed.Description = "Nothing has been played yet."
		return embed
	}

	var sb strings.Builder
	for i := len(tracks) - 1; i >= 0; i-- {
		t := tracks[i]
		fmt.Fprintf(&sb, "<t:%d:R> **%s** - requested by %s\n", t.PlayedAt.Unix(), t.Title, t.Requester)
	}
	embed.Description = sb.String()
	return embed
}
