// Package music holds the types shared by the playback coordinator: the error
// taxonomy reported to callers, the caller identity, and the collaborator
// interfaces the core consumes from the chat platform.
package music

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNodeUnavailable = errors.New("no connected audio node")
	ErrInvalidQuery    = errors.New("search returned no playable track")
	ErrNotInVoice      = errors.New("caller is not in a voice channel")
	ErrWrongChannel    = errors.New("caller is not in the player's voice channel")
	ErrNoPlayer        = errors.New("no active player for guild")
	ErrNotPlaying      = errors.New("no track is currently playing")
	ErrNotPrivileged   = errors.New("caller is not privileged")
)

// Notices sent to a player's text channel by background paths.
const (
	NoticeAlone     = "Quitting because I am alone..."
	NoticeQueueDone = "All songs played. Leaving the voice channel..."
	NoticeFailure   = "Something went wrong. I will be quitting now..."
)

// Caller identifies the user invoking an operation.
type Caller struct {
	UserID string
	Name   string
	// Privileged is set for the bot owner.
	Privileged bool
}

// VoiceGateway is the voice-session primitive of the chat platform.
type VoiceGateway interface {
	// UserVoiceChannel returns the voice channel the user currently sits in.
	UserVoiceChannel(guildID, userID string) (string, bool)
	// HumanMembers counts non-bot members of a voice channel.
	HumanMembers(ctx context.Context, guildID, channelID string) (int, error)
	Join(ctx context.Context, guildID, channelID string) error
	Leave(ctx context.Context, guildID string) error
}

// Notifier delivers a notice to a guild text channel. A positive ttl deletes
// the message after that long.
type Notifier interface {
	Notify(ctx context.Context, guildID, channelID, content string, ttl time.Duration) error
}
