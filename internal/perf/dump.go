package perf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vmartel/io-perf-monitor/internal/metrics"
)

const dumpUsage = "usage: [--start] [--interval <dur>] [--max-duration <dur>] | [--end]"

// dumpRequest is the parsed form of the dump argument surface.
type dumpRequest struct {
	start       bool
	end         bool
	interval    time.Duration
	maxDuration time.Duration
}

// parseDumpArgs interprets the dump argument vector. A bare --interval
// or --max-duration implies --start; --start and --end conflict. Missing
// defaults are filled in.
func parseDumpArgs(args []string) (dumpRequest, error) {
	req := dumpRequest{interval: DefaultCustomInterval, maxDuration: DefaultCustomDuration}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--start":
			req.start = true
		case "--end":
			req.end = true
		case "--interval", "--max-duration":
			flag := args[i]
			i++
			if i >= len(args) {
				return dumpRequest{}, fmt.Errorf("%w: %s needs a value; %s", ErrInvalidDumpArgs, flag, dumpUsage)
			}
			d, err := time.ParseDuration(args[i])
			if err != nil {
				return dumpRequest{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidDumpArgs, flag, args[i], err)
			}
			if flag == "--interval" {
				req.interval = d
			} else {
				req.maxDuration = d
			}
			req.start = true
		default:
			return dumpRequest{}, fmt.Errorf("%w: unknown argument %q; %s", ErrInvalidDumpArgs, args[i], dumpUsage)
		}
	}
	if req.start && req.end {
		return dumpRequest{}, fmt.Errorf("%w: --start and --end conflict; %s", ErrInvalidDumpArgs, dumpUsage)
	}
	return req, nil
}

// Dump serves the polymorphic dump surface: with no args it renders the
// retained boot-time and periodic histories plus current status; with
// start args it begins a custom collection; with --end it ends one and
// renders its one-shot report.
func (c *Collector) Dump(w io.Writer, args []string) error {
	metrics.DumpRequested()
	req, err := parseDumpArgs(args)
	if err != nil {
		return err
	}
	switch {
	case req.end:
		return c.EndCustomCollection(w)
	case req.start:
		if err := c.StartCustomCollection(req.interval, req.maxDuration); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "Custom collection started: interval %v, max duration %v.\n",
			req.interval, req.maxDuration)
		return err
	}
	return c.dumpHistories(w)
}

func (c *Collector) dumpHistories(w io.Writer) error {
	c.mu.Lock()
	regime := c.regime
	bootInterval := c.boot.interval
	bootRecords := c.boot.snapshot()
	periodicInterval := c.periodic.interval
	periodicRecords := c.periodic.snapshot()
	customSamples := len(c.custom.records)
	customInterval := c.custom.interval
	disabled := c.disabledSources()
	c.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(sectionRule)
	sb.WriteString("                 I/O PERFORMANCE REPORT\n")
	sb.WriteString(sectionRule)
	fmt.Fprintf(&sb, "Generated:      %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current regime: %s\n", regime)
	if regime != Uninitialized && len(disabled) > 0 {
		fmt.Fprintf(&sb, "Disabled sources: %s\n", strings.Join(disabled, ", "))
	}
	if regime == Custom {
		fmt.Fprintf(&sb, "Custom collection in progress: interval %v, %d samples retained\n",
			customInterval, customSamples)
	}

	renderSection(&sb, "Boot-time collection", bootInterval, bootRecords)
	renderSection(&sb, "Periodic collection", periodicInterval, periodicRecords)

	_, err := io.WriteString(w, sb.String())
	return err
}

// disabledSources lists the proc sources that were unavailable at Start.
// Caller holds c.mu.
func (c *Collector) disabledSources() []string {
	var disabled []string
	if !c.uidIoOK {
		disabled = append(disabled, "uid_io")
	}
	if !c.systemOK {
		disabled = append(disabled, "system")
	}
	if !c.processOK {
		disabled = append(disabled, "process")
	}
	return disabled
}

const (
	sectionRule = "═══════════════════════════════════════════════════════════════\n"
	subRule     = "───────────────────────────────────────────────────────────────\n"
)

func writeSection(w io.Writer, title string, interval time.Duration, records []Sample) error {
	var sb strings.Builder
	renderSection(&sb, title, interval, records)
	_, err := io.WriteString(w, sb.String())
	return err
}

func renderSection(sb *strings.Builder, title string, interval time.Duration, records []Sample) {
	sb.WriteString(subRule)
	fmt.Fprintf(sb, "%s (interval %v, %d samples)\n", title, interval, len(records))
	if len(records) == 0 {
		sb.WriteString("  (no samples collected)\n")
		return
	}
	for _, s := range records {
		renderSample(sb, s)
	}
}

func renderSample(sb *strings.Builder, s Sample) {
	fmt.Fprintf(sb, "Sample at %s\n", s.Time.Format("2006-01-02 15:04:05"))

	u := s.UidIo
	fmt.Fprintf(sb, "  UID I/O totals: fg %d bytes / %d fsync, bg %d bytes / %d fsync\n",
		u.TotalBytes[0], u.TotalFsync[0], u.TotalBytes[1], u.TotalFsync[1])
	if len(u.TopUids) > 0 {
		sb.WriteString("  Top UIDs by bytes:\n")
		for i, e := range u.TopUids {
			fmt.Fprintf(sb, "    %d. %s (uid %d): fg %d bytes / %d fsync, bg %d bytes / %d fsync\n",
				i+1, e.Package, e.Uid, e.Bytes[0], e.Fsync[0], e.Bytes[1], e.Fsync[1])
		}
	}

	sys := s.SystemIo
	fmt.Fprintf(sb, "  System: cpu iowait %d of %d jiffies, %d of %d processes blocked on I/O\n",
		sys.CpuIoWaitTime, sys.TotalCpuTime, sys.IoBlockedProcesses, sys.TotalProcesses)

	p := s.ProcessIo
	if len(p.TopIoBlockedUids) > 0 {
		sb.WriteString("  Top UIDs by I/O-blocked tasks:\n")
		for i, e := range p.TopIoBlockedUids {
			fmt.Fprintf(sb, "    %d. %s (uid %d): %d of %d tasks\n",
				i+1, e.Package, e.Uid, e.IoBlockedTasks, e.TotalTasks)
		}
	}
	if len(p.TopMajorFaultUids) > 0 {
		sb.WriteString("  Top UIDs by major faults:\n")
		for i, e := range p.TopMajorFaultUids {
			fmt.Fprintf(sb, "    %d. %s (uid %d): %d faults\n", i+1, e.Package, e.Uid, e.MajorFaults)
		}
	}
	fmt.Fprintf(sb, "  Major faults: %d total, %+.1f%% vs previous sample\n",
		p.TotalMajorFaults, p.MajorFaultsPercentChange)
}
