package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/music/node"
)

const voiceReadyTimeout = 10 * time.Second

var errVoiceTimeout = errors.New("timed out waiting for voice credentials")

// voiceSession collects the two halves of a guild voice handshake. ready
// closes once both reached the audio node.
type voiceSession struct {
	sessionID string
	token     string
	endpoint  string
	ready     chan struct{}
	once      sync.Once
}

func (v *voiceSession) complete() bool {
	return v.sessionID != "" && v.token != "" && v.endpoint != ""
}

// UserVoiceChannel returns the voice channel the user currently sits in.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := b.dg.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// HumanMembers counts the non-bot users connected to a voice channel.
func (b *Bot) HumanMembers(ctx context.Context, guildID, channelID string) (int, error) {
	g, err := b.dg.State.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("guild %s: %w", guildID, err)
	}

	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		isBot, err := b.isBotUser(ctx, guildID, vs)
		if err != nil {
			return 0, err
		}
		if !isBot {
			n++
		}
	}
	return n, nil
}

func (b *Bot) isBotUser(ctx context.Context, guildID string, vs *discordgo.VoiceState) (bool, error) {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot, nil
	}
	if m, err := b.dg.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
		return m.User.Bot, nil
	}
	m, err := b.dg.GuildMember(guildID, vs.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("member %s: %w", vs.UserID, err)
	}
	return m.User != nil && m.User.Bot, nil
}

// Join moves the bot into a voice channel and waits until the audio node
// holds the resulting voice credentials.
func (b *Bot) Join(ctx context.Context, guildID, channelID string) error {
	b.mu.Lock()
	sess := &voiceSession{ready: make(chan struct{})}
	b.voices[guildID] = sess
	b.mu.Unlock()

	if err := b.dg.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		b.dropVoice(guildID, sess)
		return fmt.Errorf("join voice channel: %w", err)
	}

	timer := time.NewTimer(voiceReadyTimeout)
	defer timer.Stop()
	select {
	case <-sess.ready:
		return nil
	case <-timer.C:
		b.dropVoice(guildID, sess)
		return errVoiceTimeout
	case <-ctx.Done():
		b.dropVoice(guildID, sess)
		return ctx.Err()
	}
}

// Leave disconnects the bot from voice in the guild.
func (b *Bot) Leave(_ context.Context, guildID string) error {
	b.mu.Lock()
	delete(b.voices, guildID)
	b.mu.Unlock()

	if err := b.dg.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
		return fmt.Errorf("leave voice channel: %w", err)
	}
	return nil
}

func (b *Bot) dropVoice(guildID string, sess *voiceSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.voices[guildID] == sess {
		delete(b.voices, guildID)
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil || e.UserID != b.UserID() {
		return
	}
	b.updateVoice(e.GuildID, func(v *voiceSession) {
		v.sessionID = e.SessionID
	})
}

func (b *Bot) onVoiceServerUpdate(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	b.updateVoice(e.GuildID, func(v *voiceSession) {
		v.token = e.Token
		v.endpoint = e.Endpoint
	})
}

// updateVoice applies one half of the handshake and forwards the credentials
// once both are known. Updates for guilds the bot is not joining are ignored.
func (b *Bot) updateVoice(guildID string, apply func(*voiceSession)) {
	b.mu.Lock()
	sess, ok := b.voices[guildID]
	if !ok {
		b.mu.Unlock()
		return
	}
	apply(sess)
	if !sess.complete() {
		b.mu.Unlock()
		return
	}
	creds := node.Voice{SessionID: sess.sessionID, Token: sess.token, Endpoint: sess.endpoint}
	b.mu.Unlock()

	n, err := b.nodes.RequireNode()
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("No audio node for voice update")
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, voiceReadyTimeout)
	defer cancel()
	if err := n.UpdateVoice(ctx, guildID, creds); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("Failed to forward voice update")
		return
	}
	sess.once.Do(func() { close(sess.ready) })
}
