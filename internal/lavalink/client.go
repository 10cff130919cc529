// Package lavalink is a client for a Lavalink v4 audio node: the websocket
// event stream plus the REST calls the player needs.
package lavalink

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/pkg/retrylimit"
	"github.com/rs/zerolog"
)

const (
	defaultClientName = "jukebox/1.0"
	handshakeTimeout  = 10 * time.Second
	requestTimeout    = 10 * time.Second
	searchPrefix      = "ytsearch:"
)

// EventHandler receives track events. Calls run on their own goroutine and
// ctx is cancelled when the client closes.
type EventHandler interface {
	OnTrackStart(ctx context.Context, guildID, encoded string)
	OnTrackEnd(ctx context.Context, guildID, encoded, reason string)
}

type Config struct {
	// URL is the node's HTTP base, e.g. http://localhost:2333.
	URL        string
	Password   string
	UserID     string
	Name       string
	ClientName string
}

// Client is one live node session. It implements node.Node.
type Client struct {
	cfg       Config
	id        string
	base      *url.URL
	sessionID string
	conn      *websocket.Conn
	http      *http.Client
	limiter   *retrylimit.AdaptiveLimiter
	handler   EventHandler
	log       zerolog.Logger

	connected atomic.Bool
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

var _ node.Node = (*Client)(nil)

// Dial opens the websocket and waits for the node's ready frame.
func Dial(ctx context.Context, cfg Config, handler EventHandler, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse node url: %w", err)
	}
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}

	ws := *base
	switch base.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	ws.Path = "/v4/websocket"

	header := http.Header{}
	header.Set("Authorization", cfg.Password)
	header.Set("User-Id", cfg.UserID)
	header.Set("Client-Name", cfg.ClientName)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, ws.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ws.Redacted(), err)
	}

	sessionID, err := awaitReady(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		id:        nodeID(cfg.Name),
		base:      base,
		sessionID: sessionID,
		conn:      conn,
		http:      &http.Client{Timeout: requestTimeout},
		limiter:   retrylimit.NewAdaptiveLimiter(10, 1, 50, 1, 0.5),
		handler:   handler,
	}
	c.log = log.With().Str("module", "lavalink").Str("node", c.id).Logger()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.connected.Store(true)

	c.wg.Add(1)
	go c.readLoop()

	c.log.Info().Str("session", sessionID).Msg("Connected to Lavalink")
	return c, nil
}

func awaitReady(ctx context.Context, conn *websocket.Conn) (string, error) {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		var m message
		if err := conn.ReadJSON(&m); err != nil {
			return "", fmt.Errorf("await ready: %w", err)
		}
		if m.Op == "ready" {
			if m.SessionID == "" {
				return "", errors.New("ready frame without session id")
			}
			return m.SessionID, nil
		}
	}
}

func nodeID(name string) string {
	if name == "" {
		name = "node"
	}
	b := make([]byte, 4)
	rand.Read(b)
	return name + "-" + hex.EncodeToString(b)
}

func (c *Client) ID() string      { return c.id }
func (c *Client) Connected() bool { return c.connected.Load() }

// SessionID is the node-side session the REST calls are scoped to.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) readLoop() {
	defer c.wg.Done()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.connected.Swap(false) {
				c.log.Warn().Err(err).Msg("Lost connection to Lavalink")
			}
			return
		}

		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			c.log.Debug().Err(err).Msg("Skipping malformed frame")
			continue
		}
		c.handle(m)
	}
}

func (c *Client) handle(m message) {
	switch m.Op {
	case "event":
		c.handleEvent(m)
	case "playerUpdate", "stats":
	case "ready":
		c.log.Info().Bool("resumed", m.Resumed).Msg("Lavalink session ready")
	default:
		c.log.Debug().Str("op", m.Op).Msg("Unknown op")
	}
}

func (c *Client) handleEvent(m message) {
	log := c.log.With().Str("guild", m.GuildID).Str("event", m.Type).Logger()

	switch m.Type {
	case "TrackStartEvent":
		c.dispatch(func(ctx context.Context) { c.handler.OnTrackStart(ctx, m.GuildID, m.encoded()) })
	case "TrackEndEvent":
		c.dispatch(func(ctx context.Context) { c.handler.OnTrackEnd(ctx, m.GuildID, m.encoded(), m.Reason) })
	case "TrackExceptionEvent":
		ev := log.Error()
		if m.Exception != nil {
			ev = ev.Str("message", m.Exception.Message).Str("severity", m.Exception.Severity)
		}
		ev.Msg("Track exception")
	case "TrackStuckEvent":
		log.Warn().Msg("Track stuck")
	case "WebSocketClosedEvent":
		log.Warn().Int("code", m.Code).Msg("Voice websocket closed")
	}
}

func (c *Client) dispatch(fn func(ctx context.Context)) {
	if c.handler == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error().Interface("panic", r).Msg("Event handler panicked")
			}
		}()
		fn(c.ctx)
	}()
}

// Search resolves a URL directly and anything else as a YouTube search.
// Playlists yield their selected track first.
func (c *Client) Search(ctx context.Context, query string) ([]queue.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	identifier := query
	if !isURL(query) {
		identifier = searchPrefix + query
	}

	var res loadResult
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return decodeLoad(res)
}

func decodeLoad(res loadResult) ([]queue.Track, error) {
	switch res.LoadType {
	case loadTrack:
		var t wireTrack
		if err := json.Unmarshal(res.Data, &t); err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		return []queue.Track{t.toTrack()}, nil
	case loadSearch:
		var ts []wireTrack
		if err := json.Unmarshal(res.Data, &ts); err != nil {
			return nil, fmt.Errorf("decode search: %w", err)
		}
		return convert(ts), nil
	case loadPlaylist:
		var pl playlistData
		if err := json.Unmarshal(res.Data, &pl); err != nil {
			return nil, fmt.Errorf("decode playlist: %w", err)
		}
		ts := pl.Tracks
		if sel := pl.Info.SelectedTrack; sel > 0 && sel < len(ts) {
			ts = append([]wireTrack{ts[sel]}, append(ts[:sel:sel], ts[sel+1:]...)...)
		}
		return convert(ts), nil
	case loadEmpty:
		return nil, nil
	case loadError:
		var ex exception
		_ = json.Unmarshal(res.Data, &ex)
		return nil, fmt.Errorf("load failed: %s", ex.Message)
	default:
		return nil, fmt.Errorf("unknown load type %q", res.LoadType)
	}
}

func convert(ts []wireTrack) []queue.Track {
	out := make([]queue.Track, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.toTrack())
	}
	return out
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (c *Client) Play(ctx context.Context, guildID string, t queue.Track) error {
	if t.Encoded == "" {
		return fmt.Errorf("track %q has no encoded payload", t.Title)
	}
	paused := false
	return c.update(ctx, guildID, playerUpdate{
		Track:  &trackUpdate{Encoded: &t.Encoded},
		Paused: &paused,
	})
}

func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.update(ctx, guildID, playerUpdate{Track: &trackUpdate{}})
}

func (c *Client) Pause(ctx context.Context, guildID string, paused bool) error {
	return c.update(ctx, guildID, playerUpdate{Paused: &paused})
}

func (c *Client) UpdateVoice(ctx context.Context, guildID string, v node.Voice) error {
	return c.update(ctx, guildID, playerUpdate{Voice: &voiceState{
		Token:     v.Token,
		Endpoint:  v.Endpoint,
		SessionID: v.SessionID,
	}})
}

func (c *Client) Destroy(ctx context.Context, guildID string) error {
	return c.do(ctx, http.MethodDelete, c.playerPath(guildID), nil, nil)
}

func (c *Client) update(ctx context.Context, guildID string, body playerUpdate) error {
	return c.do(ctx, http.MethodPatch, c.playerPath(guildID), body, nil)
}

func (c *Client) playerPath(guildID string) string {
	return fmt.Sprintf("/v4/sessions/%s/players/%s", url.PathEscape(c.sessionID), url.PathEscape(guildID))
}

// Close stops the event stream. Pending handler contexts are cancelled.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		c.cancel()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
		c.wg.Wait()
		c.log.Info().Msg("Lavalink connection closed")
	})
	return err
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string   { return fmt.Sprintf("lavalink: status %d: %s", e.code, e.body) }
func (e *statusError) StatusCode() int { return e.code }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	cfg := retrylimit.DefaultRetryConfig()
	cfg.Log = c.log

	return retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, bytes.NewReader(payload))
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		req.Header.Set("Authorization", c.cfg.Password)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return &retrylimit.FatalError{Err: serr}
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &retrylimit.FatalError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}, c.limiter, cfg)
}
