package perf

import (
	"time"

	"github.com/vmartel/io-perf-monitor/internal/procfs"
)

// UidIoEntry is one UID's I/O activity for a collection cycle, indexed by
// procfs.StateForeground / procfs.StateBackground.
type UidIoEntry struct {
	Uid     uint32
	Package string
	Bytes   [procfs.NumUidStates]uint64
	Fsync   [procfs.NumUidStates]uint64
}

// TotalBytes returns the entry's bytes summed across both states.
func (e UidIoEntry) TotalBytes() uint64 {
	var total uint64
	for _, b := range e.Bytes {
		total += b
	}
	return total
}

// UidIoSnapshot aggregates per-UID I/O activity for one cycle: per-state
// totals across all UIDs plus the top-N UIDs by combined byte throughput.
type UidIoSnapshot struct {
	TotalBytes [procfs.NumUidStates]uint64
	TotalFsync [procfs.NumUidStates]uint64
	TopUids    []UidIoEntry
}

// SystemIoSnapshot holds system-wide scheduler counters for one cycle.
// CPU times are cumulative jiffies since boot; process counts are
// instantaneous.
type SystemIoSnapshot struct {
	CpuIoWaitTime      uint64
	TotalCpuTime       uint64
	IoBlockedProcesses uint64
	TotalProcesses     uint64
}

// TaskCountEntry is one UID's task population for a cycle.
type TaskCountEntry struct {
	Uid            uint32
	Package        string
	IoBlockedTasks uint64
	TotalTasks     uint64
}

// FaultEntry is one UID's major page fault activity for a cycle.
type FaultEntry struct {
	Uid         uint32
	Package     string
	MajorFaults uint64
}

// ProcessIoSnapshot aggregates per-process stats for one cycle: top-N
// UIDs by I/O-blocked task count, top-N UIDs by major fault delta, and
// the cycle's total fault delta with its change versus the previous
// cycle. MajorFaultsPercentChange is 0 when there is no prior baseline.
type ProcessIoSnapshot struct {
	TopIoBlockedUids         []TaskCountEntry
	TopMajorFaultUids        []FaultEntry
	TotalMajorFaults         uint64
	MajorFaultsPercentChange float64
}

// Sample is one completed round of reading all proc sources. A source
// that failed or is unavailable leaves its sub-record zeroed.
type Sample struct {
	Time      time.Time
	UidIo     UidIoSnapshot
	SystemIo  SystemIoSnapshot
	ProcessIo ProcessIoSnapshot
}
