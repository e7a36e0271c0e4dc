// Package procfs parses the proc filesystem sources the collector samples:
// per-UID I/O accounting, system-wide scheduler counters, and per-process
// task stats. Readers take a proc root path so tests can point them at a
// fake tree.
package procfs

import "errors"

// UID I/O state buckets, matching the kernel's uid_io accounting order.
const (
	StateForeground = 0
	StateBackground = 1
	NumUidStates    = 2
)

var (
	// ErrEmptyStats reports a stats file with no parseable entries.
	ErrEmptyStats = errors.New("procfs: no parseable entries")

	// ErrMalformedStat reports a stat file that does not follow the
	// documented field layout.
	ErrMalformedStat = errors.New("procfs: malformed stat file")
)

// counterDelta computes the increase of a cumulative counter. A value
// below the previous one means the counter was reset, in which case the
// current value is the whole delta.
func counterDelta(curr, prev uint64) uint64 {
	if curr < prev {
		return curr
	}
	return curr - prev
}
