package reaper_test

import (
	"context"
	"testing"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/musictest"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/reaper"
	"github.com/rs/zerolog"
)

func TestSweepReapsEmptyChannels(t *testing.T) {
	reg := player.NewRegistry()
	voice := musictest.NewVoice()
	notifier := &musictest.Notifier{}
	term := &musictest.Terminator{Registry: reg, Notifier: notifier}

	add := func(guild, vc string, playing bool) *player.Player {
		p, _ := reg.GetOrCreate(guild, func() *player.Player { return player.New(guild, vc, "t-"+guild) })
		if playing {
			p.Enqueue(queue.Track{Title: "song"})
		}
		return p
	}
	add("g1", "v1", true)
	add("g2", "v2", true)
	add("g3", "v3", false)
	voice.Seat("u2", "v2")

	r := reaper.New(reg, voice, term, 0, zerolog.Nop())
	if n := r.Sweep(context.Background()); n != 1 {
		t.Fatalf("reaped: got %d, want 1", n)
	}

	if _, ok := reg.Get("g1"); ok {
		t.Error("g1 should be reaped")
	}
	if _, ok := reg.Get("g2"); !ok {
		t.Error("g2 has a listener and must stay")
	}
	if _, ok := reg.Get("g3"); !ok {
		t.Error("g3 is empty and must be skipped")
	}

	notices := notifier.Notices()
	if len(notices) != 1 || notices[0].Content != music.NoticeAlone || notices[0].ChannelID != "t-g1" {
		t.Errorf("notices: got %+v", notices)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	reg := player.NewRegistry()
	voice := musictest.NewVoice()
	term := &musictest.Terminator{Registry: reg}
	p, _ := reg.GetOrCreate("g1", func() *player.Player { return player.New("g1", "v1", "t1") })
	p.Enqueue(queue.Track{Title: "song"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n := reaper.New(reg, voice, term, 0, zerolog.Nop()).Sweep(ctx); n != 0 {
		t.Errorf("reaped: got %d, want 0", n)
	}
}
