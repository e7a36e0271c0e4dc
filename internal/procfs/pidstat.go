package procfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Tasks in uninterruptible sleep are waiting on I/O.
const taskStateIoBlocked = 'D'

// ProcessStats holds one process's task and paging activity for a
// collection cycle. MajorFaults is a delta since the previous Collect
// call; task counts are instantaneous.
type ProcessStats struct {
	Pid            int32
	Comm           string
	Uid            uint32
	MajorFaults    uint64
	TotalTasks     uint64
	IoBlockedTasks uint64
}

// ProcessStatReader walks the numeric /proc/<pid> entries and reports
// per-process counters between consecutive Collect calls.
type ProcessStatReader struct {
	root            string
	lastMajorFaults map[int32]uint64
}

// NewProcessStatReader creates a reader rooted at the given proc path. An
// empty root means /proc.
func NewProcessStatReader(root string) *ProcessStatReader {
	if root == "" {
		root = "/proc"
	}
	return &ProcessStatReader{root: root, lastMajorFaults: make(map[int32]uint64)}
}

// Available reports whether the proc root is readable.
func (r *ProcessStatReader) Available() bool {
	_, err := os.Stat(r.root)
	return err == nil
}

// Collect scans every process directory and returns per-process stats.
// Processes that exit mid-scan are skipped. The first call reports major
// faults accumulated over each process's lifetime.
func (r *ProcessStatReader) Collect() ([]ProcessStats, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.root, err)
	}

	current := make(map[int32]uint64, len(entries))
	var procs []ProcessStats
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid64, err := strconv.ParseInt(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		pid := int32(pid64)

		ps, cumFaults, err := r.readProcess(pid)
		if err != nil {
			continue
		}
		current[pid] = cumFaults
		ps.MajorFaults = counterDelta(cumFaults, r.lastMajorFaults[pid])
		procs = append(procs, ps)
	}
	// Replacing the map prunes PIDs that died since the last scan.
	r.lastMajorFaults = current

	if len(procs) == 0 {
		return nil, fmt.Errorf("scan %s: %w", r.root, ErrEmptyStats)
	}
	return procs, nil
}

func (r *ProcessStatReader) readProcess(pid int32) (ProcessStats, uint64, error) {
	dir := filepath.Join(r.root, strconv.Itoa(int(pid)))

	data, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return ProcessStats{}, 0, err
	}
	comm, _, cumFaults, err := parsePidStat(data)
	if err != nil {
		return ProcessStats{}, 0, err
	}

	uid, err := readUidFromStatus(filepath.Join(dir, "status"))
	if err != nil {
		return ProcessStats{}, 0, err
	}

	total, blocked, err := r.countTasks(filepath.Join(dir, "task"))
	if err != nil {
		return ProcessStats{}, 0, err
	}

	return ProcessStats{
		Pid:            pid,
		Comm:           comm,
		Uid:            uid,
		TotalTasks:     total,
		IoBlockedTasks: blocked,
	}, cumFaults, nil
}

// countTasks reads the stat file of every task in the process's task
// directory, counting tasks and those blocked on I/O. Tasks that exit
// between the dir listing and the read are skipped.
func (r *ProcessStatReader) countTasks(taskDir string) (total, blocked uint64, err error) {
	tids, err := os.ReadDir(taskDir)
	if err != nil {
		return 0, 0, err
	}
	for _, tid := range tids {
		data, err := os.ReadFile(filepath.Join(taskDir, tid.Name(), "stat"))
		if err != nil {
			continue
		}
		_, state, _, err := parsePidStat(data)
		if err != nil {
			continue
		}
		total++
		if state == taskStateIoBlocked {
			blocked++
		}
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("scan %s: %w", taskDir, ErrEmptyStats)
	}
	return total, blocked, nil
}

// parsePidStat extracts comm, state, and the cumulative major fault count
// from a /proc/<pid>/stat line. comm is in parens and may itself contain
// spaces and parens, so it ends at the last ')'.
func parsePidStat(data []byte) (comm string, state byte, majorFaults uint64, err error) {
	start := bytes.IndexByte(data, '(')
	end := bytes.LastIndexByte(data, ')')
	if start < 0 || end < 0 || end >= len(data)-1 {
		return "", 0, 0, ErrMalformedStat
	}
	comm = string(data[start+1 : end])

	// After comm: state ppid pgrp session tty tpgid flags minflt cminflt majflt ...
	fields := strings.Fields(string(data[end+1:]))
	if len(fields) < 10 || len(fields[0]) != 1 {
		return "", 0, 0, ErrMalformedStat
	}
	state = fields[0][0]
	majorFaults = parseU64(fields[9])

	return comm, state, majorFaults, nil
}

// readUidFromStatus returns the real UID from a /proc/<pid>/status file.
func readUidFromStatus(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		// Uid: <real> <effective> <saved> <fs>
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		uid, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			break
		}
		return uint32(uid), nil
	}
	return 0, fmt.Errorf("parse %s: %w", path, ErrMalformedStat)
}
