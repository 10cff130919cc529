package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Notify posts a notice into the guild's configured music channel, falling
// back to channelID. A positive ttl deletes the message afterwards.
func (b *Bot) Notify(ctx context.Context, guildID, channelID, content string, ttl time.Duration) error {
	target := b.noticeChannel(guildID, channelID)
	if target == "" {
		return fmt.Errorf("no channel for notice in guild %s", guildID)
	}

	msg, err := b.dg.ChannelMessageSend(target, content, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	if ttl > 0 {
		time.AfterFunc(ttl, func() {
			if err := b.dg.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
				b.log.Debug().Err(err).Str("guild", guildID).Msg("Failed to delete expired notice")
			}
		})
	}
	return nil
}

func (b *Bot) noticeChannel(guildID, fallback string) string {
	if b.storage == nil {
		return fallback
	}
	ch, err := b.storage.GetMusicChannel(guildID)
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to read music channel")
		return fallback
	}
	if ch != "" {
		return ch
	}
	return fallback
}
