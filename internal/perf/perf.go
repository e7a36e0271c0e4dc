// Package perf implements the I/O performance collection engine: a state
// machine driving boot-time, periodic, and operator-triggered custom
// collection regimes on a single background goroutine, with bounded
// in-memory sample histories and a text dump surface.
package perf

import (
	"errors"
	"time"
)

// Regime identifies the currently active collection mode. Exactly one
// regime is current at any time; Uninitialized is the only legal start
// state and Terminated is absorbing.
type Regime int

const (
	Uninitialized Regime = iota
	BootTime
	Periodic
	Custom
	Terminated
)

func (r Regime) String() string {
	switch r {
	case Uninitialized:
		return "uninitialized"
	case BootTime:
		return "boot-time"
	case Periodic:
		return "periodic"
	case Custom:
		return "custom"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Collection parameters. Overridable through Options and, for custom
// collections, through the dump surface.
const (
	DefaultTopN               = 5
	DefaultBootInterval       = 1 * time.Second
	DefaultPeriodicInterval   = 10 * time.Second
	DefaultPeriodicBufferSize = 180
	MinCollectionInterval     = 1 * time.Second
	DefaultCustomInterval     = 10 * time.Second
	DefaultCustomDuration     = 30 * time.Minute
)

var (
	// ErrAlreadyStarted reports a second Start call.
	ErrAlreadyStarted = errors.New("perf: collector already started")

	// ErrInvalidState reports an operation that is not legal in the
	// current regime.
	ErrInvalidState = errors.New("perf: operation not valid in current state")

	// ErrAlreadyInProgress reports a custom collection start while one
	// is already running.
	ErrAlreadyInProgress = errors.New("perf: custom collection already in progress")

	// ErrNoActiveCollection reports a custom collection end with no
	// custom collection running.
	ErrNoActiveCollection = errors.New("perf: no custom collection in progress")

	// ErrSourcesUnavailable reports that none of the proc sources can be
	// read on this kernel.
	ErrSourcesUnavailable = errors.New("perf: no collectable proc sources")

	// ErrInvalidDumpArgs reports unparseable or conflicting dump
	// arguments.
	ErrInvalidDumpArgs = errors.New("perf: invalid dump arguments")
)
