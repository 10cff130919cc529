package lavalink

import (
	"encoding/json"
	"time"

	"github.com/keshon/jukebox/internal/music/queue"
)

type trackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	SourceName string `json:"sourceName"`
}

type wireTrack struct {
	Encoded string    `json:"encoded"`
	Info    trackInfo `json:"info"`
}

func (w wireTrack) toTrack() queue.Track {
	return queue.Track{
		Title:      w.Info.Title,
		URI:        w.Info.URI,
		Author:     w.Info.Author,
		Duration:   time.Duration(w.Info.Length) * time.Millisecond,
		LoopExempt: w.Info.IsStream,
		Encoded:    w.Encoded,
	}
}

type exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

const (
	loadTrack    = "track"
	loadSearch   = "search"
	loadPlaylist = "playlist"
	loadEmpty    = "empty"
	loadError    = "error"
)

type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []wireTrack `json:"tracks"`
}

// message is any frame received on the websocket.
type message struct {
	Op        string     `json:"op"`
	SessionID string     `json:"sessionId"`
	Resumed   bool       `json:"resumed"`
	Type      string     `json:"type"`
	GuildID   string     `json:"guildId"`
	Track     *wireTrack `json:"track"`
	Reason    string     `json:"reason"`
	Exception *exception `json:"exception"`
	Code      int        `json:"code"`
}

func (m message) encoded() string {
	if m.Track == nil {
		return ""
	}
	return m.Track.Encoded
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type playerUpdate struct {
	Track  *trackUpdate `json:"track,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Voice  *voiceState  `json:"voice,omitempty"`
}

// trackUpdate with a nil Encoded stops the player.
type trackUpdate struct {
	Encoded *string `json:"encoded"`
}
