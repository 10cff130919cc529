package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/coordinator"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/storage"
)

// Service is the slice of the coordinator the commands drive.
type Service interface {
	Play(ctx context.Context, guildID string, caller music.Caller, textChannelID, query string) (coordinator.PlayResult, error)
	PauseOrResume(ctx context.Context, guildID string, caller music.Caller) (bool, error)
	Skip(ctx context.Context, guildID string, caller music.Caller) (bool, error)
	ToggleLoop(ctx context.Context, guildID string, caller music.Caller) (bool, error)
	Quit(ctx context.Context, guildID string, caller music.Caller) error
	ListQueue(guildID string) (player.Snapshot, error)
	ManualReconnect(ctx context.Context, caller music.Caller) (oldID, newID string, err error)
}

// Settings is the per-guild music configuration and history.
type Settings interface {
	FetchTrackHistory(guildID string) ([]storage.TrackHistoryRecord, error)
	SetMusicChannel(guildID, channelID string) error
}

// errorText maps an operation error to the message shown to the caller.
func errorText(err error) string {
	switch {
	case errors.Is(err, music.ErrNodeUnavailable):
		return "Music playing server is offline! Please notify the bot owner of the issue!"
	case errors.Is(err, music.ErrNotInVoice):
		return "You must be in a voice channel to use this command!"
	case errors.Is(err, music.ErrWrongChannel):
		return "You must be in the same voice channel with me to use this command!"
	case errors.Is(err, music.ErrInvalidQuery):
		return "Your link is invalid!"
	case errors.Is(err, music.ErrNoPlayer):
		return "I am not in a voice channel!"
	case errors.Is(err, music.ErrNotPlaying):
		return "I am not playing any music!"
	case errors.Is(err, music.ErrNotPrivileged):
		return "Only the bot owner may use this command!"
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
