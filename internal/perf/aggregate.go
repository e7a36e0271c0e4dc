package perf

import (
	"sort"

	"github.com/vmartel/io-perf-monitor/internal/procfs"
)

// buildUidIoSnapshot folds per-UID I/O deltas into regime-wide totals and
// ranks the top-N UIDs by combined byte throughput, ties broken by UID
// ascending.
func buildUidIoSnapshot(usage map[uint32]procfs.UidIoUsage, topN int, nameOf func(uint32) string) UidIoSnapshot {
	var snap UidIoSnapshot
	entries := make([]UidIoEntry, 0, len(usage))
	for uid, u := range usage {
		e := UidIoEntry{Uid: uid, Package: nameOf(uid)}
		for s := 0; s < procfs.NumUidStates; s++ {
			e.Bytes[s] = u.ReadBytes[s] + u.WriteBytes[s]
			e.Fsync[s] = u.Fsync[s]
			snap.TotalBytes[s] += e.Bytes[s]
			snap.TotalFsync[s] += e.Fsync[s]
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		bi, bj := entries[i].TotalBytes(), entries[j].TotalBytes()
		if bi != bj {
			return bi > bj
		}
		return entries[i].Uid < entries[j].Uid
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	snap.TopUids = entries

	return snap
}

func buildSystemIoSnapshot(stats procfs.SystemStats) SystemIoSnapshot {
	return SystemIoSnapshot{
		CpuIoWaitTime:      stats.CpuIoWaitTime,
		TotalCpuTime:       stats.TotalCpuTime,
		IoBlockedProcesses: stats.IoBlockedProcesses,
		TotalProcesses:     stats.TotalProcesses(),
	}
}

// buildProcessIoSnapshot aggregates per-process stats by owning UID and
// ranks two independent top-N lists: UIDs by I/O-blocked task count and
// UIDs by major fault delta. lastMajorFaults is the previous cycle's
// total fault delta; a zero baseline yields a 0% change.
func buildProcessIoSnapshot(procs []procfs.ProcessStats, topN int, lastMajorFaults uint64, nameOf func(uint32) string) ProcessIoSnapshot {
	type uidAgg struct {
		ioBlockedTasks uint64
		totalTasks     uint64
		majorFaults    uint64
	}
	byUid := make(map[uint32]*uidAgg)
	var snap ProcessIoSnapshot
	for _, p := range procs {
		agg := byUid[p.Uid]
		if agg == nil {
			agg = &uidAgg{}
			byUid[p.Uid] = agg
		}
		agg.ioBlockedTasks += p.IoBlockedTasks
		agg.totalTasks += p.TotalTasks
		agg.majorFaults += p.MajorFaults
		snap.TotalMajorFaults += p.MajorFaults
	}

	blocked := make([]TaskCountEntry, 0, len(byUid))
	faults := make([]FaultEntry, 0, len(byUid))
	for uid, agg := range byUid {
		name := nameOf(uid)
		blocked = append(blocked, TaskCountEntry{
			Uid:            uid,
			Package:        name,
			IoBlockedTasks: agg.ioBlockedTasks,
			TotalTasks:     agg.totalTasks,
		})
		faults = append(faults, FaultEntry{Uid: uid, Package: name, MajorFaults: agg.majorFaults})
	}

	sort.Slice(blocked, func(i, j int) bool {
		if blocked[i].IoBlockedTasks != blocked[j].IoBlockedTasks {
			return blocked[i].IoBlockedTasks > blocked[j].IoBlockedTasks
		}
		return blocked[i].Uid < blocked[j].Uid
	})
	if len(blocked) > topN {
		blocked = blocked[:topN]
	}
	snap.TopIoBlockedUids = blocked

	sort.Slice(faults, func(i, j int) bool {
		if faults[i].MajorFaults != faults[j].MajorFaults {
			return faults[i].MajorFaults > faults[j].MajorFaults
		}
		return faults[i].Uid < faults[j].Uid
	})
	if len(faults) > topN {
		faults = faults[:topN]
	}
	snap.TopMajorFaultUids = faults

	if lastMajorFaults != 0 {
		snap.MajorFaultsPercentChange = (float64(snap.TotalMajorFaults) - float64(lastMajorFaults)) /
			float64(lastMajorFaults) * 100
	}

	return snap
}
