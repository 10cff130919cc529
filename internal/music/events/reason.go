package events

import "strings"

// EndReason is why the node stopped a track.
type EndReason int

const (
	ReasonUnknown EndReason = iota
	ReasonFinished
	ReasonStopped
	ReasonReplaced
	ReasonCleanup
	ReasonLoadFailed
)

var reasonNames = map[EndReason]string{
	ReasonUnknown:    "unknown",
	ReasonFinished:   "finished",
	ReasonStopped:    "stopped",
	ReasonReplaced:   "replaced",
	ReasonCleanup:    "cleanup",
	ReasonLoadFailed: "loadFailed",
}

func (r EndReason) String() string {
	return reasonNames[r]
}

// ParseEndReason maps the node's reason string. Unrecognized input is
// ReasonUnknown.
func ParseEndReason(s string) EndReason {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "finished":
		return ReasonFinished
	case "stopped":
		return ReasonStopped
	case "replaced":
		return ReasonReplaced
	case "cleanup":
		return ReasonCleanup
	case "loadfailed", "load_failed":
		return ReasonLoadFailed
	default:
		return ReasonUnknown
	}
}

// Advances reports whether the queue moves on after this reason.
func (r EndReason) Advances() bool {
	return r == ReasonFinished || r == ReasonStopped
}
