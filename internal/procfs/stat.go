package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SystemStats holds cumulative scheduler counters from /proc/stat.
type SystemStats struct {
	CpuIoWaitTime      uint64
	TotalCpuTime       uint64
	RunnableProcesses  uint64
	IoBlockedProcesses uint64
}

// TotalProcesses returns the runnable plus I/O-blocked process count.
func (s SystemStats) TotalProcesses() uint64 {
	return s.RunnableProcesses + s.IoBlockedProcesses
}

// SystemStatReader parses the aggregate cpu line and process counts from
// /proc/stat. Values are cumulative since boot; callers delta as needed.
type SystemStatReader struct {
	root string
}

// NewSystemStatReader creates a reader rooted at the given proc path. An
// empty root means /proc.
func NewSystemStatReader(root string) *SystemStatReader {
	if root == "" {
		root = "/proc"
	}
	return &SystemStatReader{root: root}
}

// Available reports whether the stat file exists.
func (r *SystemStatReader) Available() bool {
	_, err := os.Stat(filepath.Join(r.root, "stat"))
	return err == nil
}

// Collect parses the stat file.
func (r *SystemStatReader) Collect() (SystemStats, error) {
	path := filepath.Join(r.root, "stat")
	data, err := os.ReadFile(path)
	if err != nil {
		return SystemStats{}, fmt.Errorf("read %s: %w", path, err)
	}

	var stats SystemStats
	sawCpu := false
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "cpu":
			// user nice system idle iowait irq softirq steal [guest guest_nice]
			// Guest time is already accounted in user time, so only the
			// first eight fields count toward the total.
			if len(fields) < 9 {
				return SystemStats{}, fmt.Errorf("parse %s cpu line: %w", path, ErrMalformedStat)
			}
			for i := 1; i <= 8; i++ {
				stats.TotalCpuTime += parseU64(fields[i])
			}
			stats.CpuIoWaitTime = parseU64(fields[5])
			sawCpu = true
		case "procs_running":
			stats.RunnableProcesses = parseU64(fields[1])
		case "procs_blocked":
			stats.IoBlockedProcesses = parseU64(fields[1])
		}
	}
	if !sawCpu {
		return SystemStats{}, fmt.Errorf("parse %s: %w", path, ErrMalformedStat)
	}

	return stats, nil
}
