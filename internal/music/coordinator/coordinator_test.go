package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/coordinator"
	"github.com/keshon/jukebox/internal/music/musictest"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/rs/zerolog"
)

var (
	alice = music.Caller{UserID: "u1", Name: "alice"}
	bob   = music.Caller{UserID: "u2", Name: "bob"}
	owner = music.Caller{UserID: "u9", Name: "owner", Privileged: true}
)

type fixture struct {
	reg      *player.Registry
	node     *musictest.Node
	sup      *node.Supervisor
	voice    *musictest.Voice
	notifier *musictest.Notifier
	c        *coordinator.Coordinator
}

func newFixture(t *testing.T, connect bool) *fixture {
	t.Helper()
	f := &fixture{
		reg:      player.NewRegistry(),
		node:     musictest.NewNode("n1"),
		voice:    musictest.NewVoice(),
		notifier: &musictest.Notifier{},
	}
	f.sup = node.NewSupervisor(func(context.Context) (node.Node, error) { return f.node, nil }, zerolog.Nop())
	if connect && !f.sup.Connect(context.Background()) {
		t.Fatal("connect failed")
	}
	f.c = coordinator.New(f.reg, f.sup, f.voice, f.notifier, zerolog.Nop())
	return f
}

func TestPlayCreatesPlayerAndQueues(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	for _, q := range []string{"Song A", "Song B", "Song C"} {
		f.node.Add(q)
	}

	res, err := f.c.Play(ctx, "g1", alice, "t1", "Song A")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Started || res.Track.Title != "Song A" || res.Track.Requester != "alice" {
		t.Errorf("result: got %+v", res)
	}
	if ch, ok := f.voice.Joined("g1"); !ok || ch != "v1" {
		t.Errorf("joined: got %q, %v", ch, ok)
	}

	for _, q := range []string{"Song B", "Song C"} {
		res, err := f.c.Play(ctx, "g1", alice, "t1", q)
		if err != nil {
			t.Fatal(err)
		}
		if res.Started {
			t.Errorf("%s should be queued, not started", q)
		}
	}

	snap, err := f.c.ListQueue("g1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Current == nil || snap.Current.Title != "Song A" {
		t.Errorf("current: got %+v", snap.Current)
	}
	if snap.Total != 2 || snap.Upcoming[0].Title != "Song B" || snap.Upcoming[1].Title != "Song C" {
		t.Errorf("upcoming: got %+v", snap.Upcoming)
	}
	if !slices.Contains(f.node.Calls(), "play g1 Song A") {
		t.Errorf("calls: got %v", f.node.Calls())
	}
}

func TestPlayGuards(t *testing.T) {
	tests := []struct {
		name    string
		connect bool
		seat    map[string]string
		caller  music.Caller
		query   string
		want    error
	}{
		{"no node", false, map[string]string{"u1": "v1"}, alice, "Song A", music.ErrNodeUnavailable},
		{"not in voice", true, nil, alice, "Song A", music.ErrNotInVoice},
		{"unknown query", true, map[string]string{"u1": "v1"}, alice, "nothing", music.ErrInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.connect)
			f.node.Add("Song A")
			for u, ch := range tt.seat {
				f.voice.Seat(u, ch)
			}

			_, err := f.c.Play(context.Background(), "g1", tt.caller, "t1", tt.query)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if f.reg.Len() != 0 {
				t.Error("rejected play created a player")
			}
			if _, joined := f.voice.Joined("g1"); joined {
				t.Error("rejected play joined voice")
			}
		})
	}
}

func TestWrongChannelLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.node.Add("Song A")
	f.node.Add("Song B")
	f.voice.Seat("u1", "v1")
	f.voice.Seat("u2", "v2")

	if _, err := f.c.Play(ctx, "g1", alice, "t1", "Song A"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.Play(ctx, "g1", alice, "t1", "Song B"); err != nil {
		t.Fatal(err)
	}
	before, _ := f.c.ListQueue("g1")
	calls := len(f.node.Calls())

	if _, err := f.c.Play(ctx, "g1", bob, "t1", "Song B"); !errors.Is(err, music.ErrWrongChannel) {
		t.Errorf("play: got %v", err)
	}
	if _, err := f.c.PauseOrResume(ctx, "g1", bob); !errors.Is(err, music.ErrWrongChannel) {
		t.Errorf("pause: got %v", err)
	}
	if _, err := f.c.Skip(ctx, "g1", bob); !errors.Is(err, music.ErrWrongChannel) {
		t.Errorf("skip: got %v", err)
	}
	if _, err := f.c.ToggleLoop(ctx, "g1", bob); !errors.Is(err, music.ErrWrongChannel) {
		t.Errorf("loop: got %v", err)
	}
	if err := f.c.Quit(ctx, "g1", bob); !errors.Is(err, music.ErrWrongChannel) {
		t.Errorf("quit: got %v", err)
	}

	after, err := f.c.ListQueue("g1")
	if err != nil {
		t.Fatal(err)
	}
	if after.Total != before.Total || after.State != before.State || after.Looping != before.Looping {
		t.Errorf("state changed: before %+v, after %+v", before, after)
	}
	if len(f.node.Calls()) != calls {
		t.Errorf("node touched by rejected calls: %v", f.node.Calls()[calls:])
	}
}

func TestOperationsWithoutPlayer(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")

	if _, err := f.c.PauseOrResume(ctx, "g1", alice); !errors.Is(err, music.ErrNoPlayer) {
		t.Errorf("pause: got %v", err)
	}
	if _, err := f.c.Skip(ctx, "g1", alice); !errors.Is(err, music.ErrNoPlayer) {
		t.Errorf("skip: got %v", err)
	}
	if _, err := f.c.ToggleLoop(ctx, "g1", alice); !errors.Is(err, music.ErrNoPlayer) {
		t.Errorf("loop: got %v", err)
	}
	if err := f.c.Quit(ctx, "g1", alice); !errors.Is(err, music.ErrNoPlayer) {
		t.Errorf("quit: got %v", err)
	}
	if _, err := f.c.ListQueue("g1"); !errors.Is(err, music.ErrNoPlayer) {
		t.Errorf("list: got %v", err)
	}
}

func TestPauseSkipLoop(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	f.node.Add("Song B")
	f.c.Play(ctx, "g1", alice, "t1", "Song A")
	f.c.Play(ctx, "g1", alice, "t1", "Song B")

	paused, err := f.c.PauseOrResume(ctx, "g1", alice)
	if err != nil || !paused {
		t.Fatalf("pause: paused=%v err=%v", paused, err)
	}
	paused, err = f.c.PauseOrResume(ctx, "g1", alice)
	if err != nil || paused {
		t.Fatalf("resume: paused=%v err=%v", paused, err)
	}

	looping, err := f.c.ToggleLoop(ctx, "g1", alice)
	if err != nil || !looping {
		t.Fatalf("loop: looping=%v err=%v", looping, err)
	}
	res, err := f.c.Play(ctx, "g1", alice, "t1", "Song B")
	if err != nil {
		t.Fatal(err)
	}
	if res.LoopingTitle != "Song A" {
		t.Errorf("looping title: got %q", res.LoopingTitle)
	}

	wasLooping, err := f.c.Skip(ctx, "g1", alice)
	if err != nil || !wasLooping {
		t.Fatalf("skip: wasLooping=%v err=%v", wasLooping, err)
	}
	snap, _ := f.c.ListQueue("g1")
	if snap.Looping {
		t.Error("skip must reset loop mode")
	}

	calls := f.node.Calls()
	for _, want := range []string{"pause g1 true", "pause g1 false", "stop g1"} {
		if !slices.Contains(calls, want) {
			t.Errorf("missing node call %q in %v", want, calls)
		}
	}
}

func TestQuitTearsDown(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	f.c.Play(ctx, "g1", alice, "t1", "Song A")

	if err := f.c.Quit(ctx, "g1", alice); err != nil {
		t.Fatal(err)
	}
	if f.reg.Len() != 0 {
		t.Error("player still registered")
	}
	if !slices.Contains(f.node.Calls(), "destroy g1") {
		t.Error("node player not destroyed")
	}
	if !slices.Contains(f.voice.Left(), "g1") {
		t.Error("voice channel not left")
	}
}

func TestPlayFailureTerminates(t *testing.T) {
	f := newFixture(t, true)
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	f.node.FailPlay(true)

	if _, err := f.c.Play(context.Background(), "g1", alice, "t1", "Song A"); err == nil {
		t.Fatal("expected error")
	}
	if f.reg.Len() != 0 {
		t.Error("player survived a failed start")
	}
	if !f.notifier.Contains(music.NoticeFailure) {
		t.Error("missing failure notice")
	}
}

func TestListQueueCapsAt20(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	for i := 0; i < 30; i++ {
		q := fmt.Sprintf("Song %02d", i)
		f.node.Add(q)
		if _, err := f.c.Play(ctx, "g1", alice, "t1", q); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := f.c.ListQueue("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Upcoming) != coordinator.MaxListed {
		t.Errorf("listed: got %d, want %d", len(snap.Upcoming), coordinator.MaxListed)
	}
	if snap.Total != 29 {
		t.Errorf("total: got %d, want 29", snap.Total)
	}
	again, _ := f.c.ListQueue("g1")
	if again.Total != 29 {
		t.Error("listing mutated the queue")
	}
}

func TestManualReconnect(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	if _, _, err := f.c.ManualReconnect(ctx, alice); !errors.Is(err, music.ErrNotPrivileged) {
		t.Errorf("unprivileged: got %v", err)
	}
	oldID, newID, err := f.c.ManualReconnect(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if oldID != "n1" || newID != "n1" {
		t.Errorf("ids: old %q new %q", oldID, newID)
	}
}

func TestShutdownDestroysAll(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.node.Add("Song A")
	for i, g := range []string{"g1", "g2", "g3"} {
		u := fmt.Sprintf("u%d", i+10)
		f.voice.Seat(u, "v-"+g)
		if _, err := f.c.Play(ctx, g, music.Caller{UserID: u, Name: u}, "t1", "Song A"); err != nil {
			t.Fatal(err)
		}
	}

	if err := f.c.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if f.reg.Len() != 0 {
		t.Errorf("players left: %d", f.reg.Len())
	}
}

func TestJoinFailureReleasesPlayer(t *testing.T) {
	f := newFixture(t, true)
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	f.voice.JoinErr = musictest.ErrFake

	if _, err := f.c.Play(context.Background(), "g1", alice, "t1", "Song A"); !errors.Is(err, musictest.ErrFake) {
		t.Fatalf("got %v, want join error", err)
	}
	if _, ok := f.reg.Get("g1"); ok {
		t.Error("player left registered after failed join")
	}
	if !slices.Contains(f.node.Calls(), "destroy g1") {
		t.Errorf("node player not destroyed: %v", f.node.Calls())
	}
	if n := f.notifier.Notices(); len(n) != 0 {
		t.Errorf("unexpected notices: %v", n)
	}
}

func TestSkipStopFailureKeepsLoop(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	if _, err := f.c.Play(ctx, "g1", alice, "t1", "Song A"); err != nil {
		t.Fatal(err)
	}
	if looping, err := f.c.ToggleLoop(ctx, "g1", alice); err != nil || !looping {
		t.Fatalf("loop: %v, %v", looping, err)
	}

	f.node.FailStop(true)
	wasLooping, err := f.c.Skip(ctx, "g1", alice)
	if !errors.Is(err, musictest.ErrFake) || !wasLooping {
		t.Fatalf("skip: %v, %v", wasLooping, err)
	}
	p, _ := f.reg.Get("g1")
	if p.Loop() != player.LoopLooping {
		t.Error("refused skip changed loop mode")
	}

	f.node.FailStop(false)
	if _, err := f.c.Skip(ctx, "g1", alice); err != nil {
		t.Fatal(err)
	}
	if p.Loop() != player.LoopNormal {
		t.Error("skip should end looping")
	}
}

func TestPauseNodeFailureKeepsState(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	if _, err := f.c.Play(ctx, "g1", alice, "t1", "Song A"); err != nil {
		t.Fatal(err)
	}

	f.node.FailPause(true)
	paused, err := f.c.PauseOrResume(ctx, "g1", alice)
	if !errors.Is(err, musictest.ErrFake) || paused {
		t.Fatalf("pause: %v, %v", paused, err)
	}
	p, _ := f.reg.Get("g1")
	if p.State() != player.StatePlaying {
		t.Errorf("state: got %s", p.State())
	}
}

func TestConcurrentPauseAlternates(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.voice.Seat("u1", "v1")
	f.node.Add("Song A")
	if _, err := f.c.Play(ctx, "g1", alice, "t1", "Song A"); err != nil {
		t.Fatal(err)
	}

	results := make(chan bool, 2)
	for range 2 {
		go func() {
			paused, err := f.c.PauseOrResume(ctx, "g1", alice)
			if err != nil {
				t.Error(err)
			}
			results <- paused
		}()
	}
	a, b := <-results, <-results
	if a == b {
		t.Errorf("both toggles reported paused=%v", a)
	}
	p, _ := f.reg.Get("g1")
	if p.Paused() {
		t.Error("two toggles should leave the player playing")
	}
}
