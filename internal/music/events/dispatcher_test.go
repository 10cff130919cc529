package events_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/events"
	"github.com/keshon/jukebox/internal/music/musictest"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/rs/zerolog"
)

type fixture struct {
	reg      *player.Registry
	node     *musictest.Node
	voice    *musictest.Voice
	notifier *musictest.Notifier
	term     *musictest.Terminator
	history  *history
	d        *events.Dispatcher
}

type history struct {
	mu     sync.Mutex
	tracks []string
}

func (h *history) RecordTrack(_ string, t queue.Track) error {
	h.mu.Lock()
	h.tracks = append(h.tracks, t.Title)
	h.mu.Unlock()
	return nil
}

func newFixture(delay time.Duration) *fixture {
	f := &fixture{
		reg:      player.NewRegistry(),
		node:     musictest.NewNode("n1"),
		voice:    musictest.NewVoice(),
		notifier: &musictest.Notifier{},
		history:  &history{},
	}
	f.term = &musictest.Terminator{Registry: f.reg, Notifier: f.notifier}
	f.d = events.New(f.reg, &musictest.Nodes{Node: f.node}, f.voice, f.notifier, f.term, zerolog.Nop(),
		events.WithAdvanceDelay(delay),
		events.WithTrackRecorder(f.history),
	)
	return f
}

// seed registers a player in voice channel v1 with one listener and the given
// tracks enqueued; the first one is current.
func (f *fixture) seed(titles ...string) *player.Player {
	f.voice.Seat("u1", "v1")
	p, _ := f.reg.GetOrCreate("g1", func() *player.Player { return player.New("g1", "v1", "t1") })
	for _, title := range titles {
		p.Enqueue(f.node.Add(title))
	}
	return p
}

func TestLoopingFinishReplaysTrack(t *testing.T) {
	f := newFixture(0)
	p := f.seed("A", "B")
	p.ToggleLoop()

	f.d.HandleTrackEnd(context.Background(), "g1", "enc:A", events.ReasonFinished)

	played := f.node.Played()
	if len(played) != 1 || played[0].Title != "A" {
		t.Fatalf("played: got %+v, want [A]", played)
	}
	if cur, _ := p.Current(); cur.Title != "A" {
		t.Errorf("current: got %q, want A", cur.Title)
	}
	snap := p.Snapshot(-1)
	if snap.Total != 1 || snap.Upcoming[0].Title != "B" {
		t.Errorf("queue: got %+v, want [B]", snap.Upcoming)
	}
	if !snap.Looping {
		t.Error("loop mode lost")
	}
}

func TestSkipWhileLoopingAdvances(t *testing.T) {
	f := newFixture(0)
	p := f.seed("A", "B")
	p.ToggleLoop()

	if _, err := p.Skip(); err != nil {
		t.Fatal(err)
	}
	f.d.HandleTrackEnd(context.Background(), "g1", "enc:A", events.ReasonStopped)

	if cur, _ := p.Current(); cur.Title != "B" {
		t.Errorf("current: got %q, want B", cur.Title)
	}
	if p.Loop() != player.LoopNormal {
		t.Error("loop mode should be normal after skip")
	}
	if p.QueueLen() != 0 {
		t.Errorf("queue length: got %d, want 0", p.QueueLen())
	}
}

func TestTrackStartAlone(t *testing.T) {
	f := newFixture(0)
	f.seed("A")
	f.voice.Empty("v1")

	f.d.HandleTrackStart(context.Background(), "g1", "enc:A")

	if _, ok := f.reg.Get("g1"); ok {
		t.Error("player should be removed")
	}
	if !f.notifier.Contains(music.NoticeAlone) {
		t.Error("missing alone notice")
	}
	if f.notifier.Contains("Now playing") {
		t.Error("announced a track in an empty channel")
	}
}

func TestTrackStartAnnounces(t *testing.T) {
	f := newFixture(0)
	p := f.seed("A")
	p.ToggleLoop()

	f.d.HandleTrackStart(context.Background(), "g1", "enc:A")

	notices := f.notifier.Notices()
	if len(notices) != 1 {
		t.Fatalf("notices: got %d, want 1", len(notices))
	}
	if want := "Now playing *A* (looping)!"; notices[0].Content != want {
		t.Errorf("content: got %q, want %q", notices[0].Content, want)
	}
	if notices[0].TTL != events.DefaultNowPlayingTTL || notices[0].ChannelID != "t1" {
		t.Errorf("notice: got %+v", notices[0])
	}
	if len(f.history.tracks) != 1 || f.history.tracks[0] != "A" {
		t.Errorf("history: got %v", f.history.tracks)
	}
}

func TestAbnormalEndTerminates(t *testing.T) {
	for _, reason := range []string{"loadFailed", "replaced", "cleanup", "mystery"} {
		t.Run(reason, func(t *testing.T) {
			f := newFixture(0)
			f.seed("A", "B")

			f.d.HandleTrackEnd(context.Background(), "g1", "enc:A", events.ParseEndReason(reason))

			if _, ok := f.reg.Get("g1"); ok {
				t.Error("player should be removed")
			}
			if got := f.term.Terminated(); len(got) != 1 || got[0] != music.NoticeFailure {
				t.Errorf("terminated: got %v", got)
			}
			if len(f.node.Played()) != 0 {
				t.Error("no retry expected")
			}
		})
	}
}

func TestQueueExhausted(t *testing.T) {
	f := newFixture(0)
	f.seed("A")

	f.d.HandleTrackEnd(context.Background(), "g1", "enc:A", events.ReasonFinished)

	if _, ok := f.reg.Get("g1"); ok {
		t.Error("player should be removed")
	}
	if !f.notifier.Contains(music.NoticeQueueDone) {
		t.Error("missing queue done notice")
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	f := newFixture(0)
	p := f.seed("A", "B")

	f.d.HandleTrackEnd(context.Background(), "g1", "enc:Z", events.ReasonFinished)
	f.d.HandleTrackEnd(context.Background(), "g2", "enc:A", events.ReasonFinished)
	f.d.HandleTrackStart(context.Background(), "g1", "enc:Z")

	if cur, _ := p.Current(); cur.Title != "A" {
		t.Errorf("current changed by stale event: %q", cur.Title)
	}
	if len(f.node.Calls()) != 0 || len(f.notifier.Notices()) != 0 {
		t.Error("stale event caused side effects")
	}
}

func TestQuitDuringAdvanceDelay(t *testing.T) {
	f := newFixture(200 * time.Millisecond)
	p := f.seed("A", "B")

	done := make(chan struct{})
	go func() {
		f.d.HandleTrackEnd(context.Background(), "g1", "enc:A", events.ReasonFinished)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		if cur, _ := p.Current(); cur.Title == "B" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("advance never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.term.Terminate(context.Background(), p, "quit")
	<-done

	if len(f.node.Played()) != 0 {
		t.Error("next track played after quit")
	}
}

func TestAdvanceCancelledByContext(t *testing.T) {
	f := newFixture(time.Hour)
	f.seed("A", "B")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.d.HandleTrackEnd(ctx, "g1", "enc:A", events.ReasonFinished)

	if len(f.node.Played()) != 0 {
		t.Error("played despite cancelled context")
	}
	if _, ok := f.reg.Get("g1"); ok {
		t.Error("player left registered after cancelled advance")
	}
}

func TestAdvanceCancelledDuringDelay(t *testing.T) {
	f := newFixture(200 * time.Millisecond)
	p := f.seed("A", "B")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	f.d.HandleTrackEnd(ctx, "g1", "enc:A", events.ReasonFinished)

	if len(f.node.Played()) != 0 {
		t.Errorf("played: %+v", f.node.Played())
	}
	if _, ok := f.reg.Get("g1"); ok {
		t.Error("player left registered after cancelled advance")
	}
	if st := p.State(); st != player.StateEmpty {
		t.Errorf("state: got %s, want %s", st, player.StateEmpty)
	}
	if got := f.term.Terminated(); len(got) != 1 || got[0] != music.NoticeFailure {
		t.Errorf("terminations: %v", got)
	}
}

func TestPlayFailureTerminates(t *testing.T) {
	f := newFixture(0)
	f.seed("A", "B")
	f.node.FailPlay(true)

	f.d.HandleTrackEnd(context.Background(), "g1", "enc:A", events.ReasonFinished)

	if _, ok := f.reg.Get("g1"); ok {
		t.Error("player should be removed after play failure")
	}
	if !f.notifier.Contains(music.NoticeFailure) {
		t.Error("missing failure notice")
	}
}

func TestParseEndReason(t *testing.T) {
	tests := []struct {
		in       string
		want     events.EndReason
		advances bool
	}{
		{"finished", events.ReasonFinished, true},
		{"FINISHED", events.ReasonFinished, true},
		{"stopped", events.ReasonStopped, true},
		{"replaced", events.ReasonReplaced, false},
		{"cleanup", events.ReasonCleanup, false},
		{"loadFailed", events.ReasonLoadFailed, false},
		{"load_failed", events.ReasonLoadFailed, false},
		{"", events.ReasonUnknown, false},
		{"exploded", events.ReasonUnknown, false},
	}
	for _, tt := range tests {
		got := events.ParseEndReason(tt.in)
		if got != tt.want {
			t.Errorf("ParseEndReason(%q): got %s, want %s", tt.in, got, tt.want)
		}
		if got.Advances() != tt.advances {
			t.Errorf("%q advances: got %v", tt.in, got.Advances())
		}
	}
	if !strings.EqualFold(events.ReasonLoadFailed.String(), "loadfailed") {
		t.Errorf("string: %s", events.ReasonLoadFailed)
	}
}
