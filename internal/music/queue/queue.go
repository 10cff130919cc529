package queue

import (
	"fmt"
	"slices"
	"time"
)

// Track is one playable item resolved by the audio node.
type Track struct {
	Title     string
	URI       string
	Author    string
	Duration  time.Duration
	Requester string
	// LoopExempt tracks are never re-queued by loop mode (live streams).
	LoopExempt bool
	// Encoded is the node's opaque handle for the track.
	Encoded string
}

// Length renders the duration as m:ss.
func (t Track) Length() string {
	if t.Duration <= 0 {
		return "live"
	}
	total := int(t.Duration / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Queue is a FIFO of tracks. It is not safe for concurrent use; the owning
// player serializes access.
type Queue struct {
	tracks []Track
}

func (q *Queue) Push(t Track) {
	q.tracks = append(q.tracks, t)
}

// PushFront puts t ahead of everything already queued.
func (q *Queue) PushFront(t Track) {
	q.tracks = slices.Insert(q.tracks, 0, t)
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	t := q.tracks[0]
	q.tracks[0] = Track{}
	q.tracks = q.tracks[1:]
	return t, true
}

func (q *Queue) Len() int {
	return len(q.tracks)
}

// Clear drops every queued track and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.tracks)
	q.tracks = nil
	return n
}

// Head returns a copy of at most limit tracks from the front. A negative limit
// returns everything.
func (q *Queue) Head(limit int) []Track {
	if limit < 0 || limit > len(q.tracks) {
		limit = len(q.tracks)
	}
	return slices.Clone(q.tracks[:limit])
}
