package command

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(every time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(every)
	l.now = c.now
	return l, c
}

func TestLimiterCooldown(t *testing.T) {
	l, c := newTestLimiter(3 * time.Second)
	ann := CooldownKey("music", "ann")

	if !l.Allow(ann) {
		t.Fatal("first call must pass")
	}
	if l.Allow(ann) {
		t.Error("second call inside cooldown passed")
	}
	if !l.Allow(CooldownKey("music", "bob")) {
		t.Error("other users are independent")
	}
	if !l.Allow(CooldownKey("help", "ann")) {
		t.Error("other commands are independent")
	}

	c.advance(3 * time.Second)
	if !l.Allow(ann) {
		t.Error("call after cooldown rejected")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l, _ := newTestLimiter(0)
	for range 5 {
		if !l.Allow("k") {
			t.Fatal("disabled limiter rejected a call")
		}
	}
	var nilLimiter *Limiter
	if !nilLimiter.Allow("k") {
		t.Error("nil limiter should allow")
	}
}

func TestLimiterPrune(t *testing.T) {
	l, c := newTestLimiter(time.Second)
	l.Allow("old")
	c.advance(10 * time.Minute)
	l.Allow("fresh")

	if n := l.Prune(5 * time.Minute); n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("entries left: %d", l.Len())
	}
}
