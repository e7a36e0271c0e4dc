package perf

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmartel/io-perf-monitor/internal/metrics"
	"github.com/vmartel/io-perf-monitor/internal/procfs"
	"github.com/vmartel/io-perf-monitor/internal/uidmap"
)

// UidIoSource reads per-UID I/O counter deltas.
type UidIoSource interface {
	Available() bool
	Collect() (map[uint32]procfs.UidIoUsage, error)
}

// SystemSource reads system-wide scheduler counters.
type SystemSource interface {
	Available() bool
	Collect() (procfs.SystemStats, error)
}

// ProcessSource reads per-process task and fault counters.
type ProcessSource interface {
	Available() bool
	Collect() ([]procfs.ProcessStats, error)
}

// Resolver maps UIDs to user names. Unresolvable UIDs are absent from
// the result; the collector substitutes a placeholder for those.
type Resolver interface {
	Resolve(uids []uint32) (map[uint32]string, error)
}

// Options configures the collection schedules. Zero fields take the
// package defaults.
type Options struct {
	TopN               int
	BootInterval       time.Duration
	PeriodicInterval   time.Duration
	PeriodicBufferSize int
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.BootInterval <= 0 {
		o.BootInterval = DefaultBootInterval
	}
	if o.PeriodicInterval <= 0 {
		o.PeriodicInterval = DefaultPeriodicInterval
	}
	if o.PeriodicBufferSize <= 0 {
		o.PeriodicBufferSize = DefaultPeriodicBufferSize
	}
	return o
}

// schedule re-arms the run loop's timers after a regime transition.
type schedule struct {
	regime    Regime
	firstTick time.Time
	timeout   time.Duration // arms the custom collection timeout when > 0
}

// Collector is the collection engine. All sampling and regime-driven
// timer work runs on one background goroutine; the public methods are
// callable from any goroutine and synchronize through one mutex and the
// schedule channel.
type Collector struct {
	opts     Options
	uidIo    UidIoSource
	system   SystemSource
	process  ProcessSource
	resolver Resolver
	log      *slog.Logger

	// Source availability, probed once at Start.
	uidIoOK   bool
	systemOK  bool
	processOK bool

	mu              sync.Mutex
	regime          Regime
	boot            collectionInfo
	periodic        collectionInfo
	custom          collectionInfo
	uidToName       map[uint32]string
	lastMajorFaults uint64

	sched chan schedule
	stop  chan struct{}
	done  chan struct{}
}

// New creates a collector with injected proc sources and UID resolver.
// Nothing is scheduled until Start.
func New(opts Options, uidIo UidIoSource, system SystemSource, process ProcessSource, resolver Resolver, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Collector{
		opts:      opts,
		uidIo:     uidIo,
		system:    system,
		process:   process,
		resolver:  resolver,
		log:       logger,
		regime:    Uninitialized,
		boot:      collectionInfo{interval: opts.BootInterval},
		periodic:  collectionInfo{interval: opts.PeriodicInterval, maxCacheSize: opts.PeriodicBufferSize},
		uidToName: make(map[uint32]string),
		sched:     make(chan schedule, 4),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start transitions Uninitialized to BootTime, spawns the background
// goroutine, and schedules the first boot-time sample immediately.
func (c *Collector) Start() error {
	c.mu.Lock()
	if c.regime != Uninitialized {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.uidIoOK = c.uidIo != nil && c.uidIo.Available()
	c.systemOK = c.system != nil && c.system.Available()
	c.processOK = c.process != nil && c.process.Available()
	if !c.uidIoOK && !c.systemOK && !c.processOK {
		c.mu.Unlock()
		return ErrSourcesUnavailable
	}
	now := time.Now()
	c.regime = BootTime
	c.boot.lastUptime = now
	c.mu.Unlock()

	go c.run(schedule{regime: BootTime, firstTick: now})
	c.log.Info("boot-time collection started",
		slog.Duration("interval", c.boot.interval),
		slog.Bool("uid_io", c.uidIoOK),
		slog.Bool("system", c.systemOK),
		slog.Bool("process", c.processOK))
	return nil
}

// OnBootFinished freezes the boot-time history and switches to periodic
// collection, first sample one periodic interval from now.
func (c *Collector) OnBootFinished() error {
	c.mu.Lock()
	if c.regime != BootTime {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.regime = Periodic
	interval := c.periodic.interval
	bootSamples := len(c.boot.records)
	c.mu.Unlock()

	c.sched <- schedule{regime: Periodic, firstTick: time.Now().Add(interval)}
	c.log.Info("boot finished, periodic collection started",
		slog.Duration("interval", interval),
		slog.Int("boot_samples", bootSamples))
	return nil
}

// StartCustomCollection suspends periodic collection and samples at the
// given interval until EndCustomCollection or until maxDuration elapses.
// Periodic history is retained, not discarded.
func (c *Collector) StartCustomCollection(interval, maxDuration time.Duration) error {
	if interval < MinCollectionInterval {
		return fmt.Errorf("perf: custom interval %v below minimum %v", interval, MinCollectionInterval)
	}
	if maxDuration < interval {
		return fmt.Errorf("perf: custom max duration %v shorter than interval %v", maxDuration, interval)
	}

	c.mu.Lock()
	switch c.regime {
	case Custom:
		c.mu.Unlock()
		return ErrAlreadyInProgress
	case Periodic:
	default:
		c.mu.Unlock()
		return ErrInvalidState
	}
	now := time.Now()
	c.custom = collectionInfo{interval: interval, lastUptime: now}
	c.regime = Custom
	c.mu.Unlock()

	c.sched <- schedule{regime: Custom, firstTick: now, timeout: maxDuration}
	c.log.Info("custom collection started",
		slog.Duration("interval", interval),
		slog.Duration("max_duration", maxDuration))
	return nil
}

// EndCustomCollection renders the custom history to w, discards it, and
// resumes periodic collection.
func (c *Collector) EndCustomCollection(w io.Writer) error {
	c.mu.Lock()
	if c.regime != Custom {
		c.mu.Unlock()
		return ErrNoActiveCollection
	}
	records := c.custom.snapshot()
	interval := c.custom.interval
	c.custom.clear()
	c.regime = Periodic
	periodicInterval := c.periodic.interval
	c.mu.Unlock()

	c.sched <- schedule{regime: Periodic, firstTick: time.Now().Add(periodicInterval)}
	metrics.HistorySize(Custom.String(), 0)
	c.log.Info("custom collection ended", slog.Int("samples", len(records)))
	return writeSection(w, "Custom collection", interval, records)
}

// Terminate stops the background goroutine and waits for it to exit. No
// sample is committed after Terminate returns. Idempotent; any state may
// terminate.
func (c *Collector) Terminate() {
	c.mu.Lock()
	prev := c.regime
	if prev == Terminated {
		c.mu.Unlock()
		return
	}
	c.regime = Terminated
	c.mu.Unlock()

	if prev != Uninitialized {
		close(c.stop)
		<-c.done
	}
	c.log.Info("collection terminated")
}

// Regime returns the current collection regime.
func (c *Collector) Regime() Regime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regime
}

// run owns the sample timer and the custom collection timeout. Sampling
// stays phase-stable: the next tick is the intended previous tick plus
// the interval, not the wall clock at completion.
func (c *Collector) run(first schedule) {
	defer close(c.done)

	armed := first.regime
	next := first.firstTick
	sample := time.NewTimer(time.Until(next))
	defer sample.Stop()
	timeout := time.NewTimer(time.Hour)
	stopTimer(timeout)
	defer timeout.Stop()

	for {
		select {
		case <-c.stop:
			return

		case s := <-c.sched:
			armed = s.regime
			next = s.firstTick
			stopTimer(sample)
			sample.Reset(time.Until(next))
			stopTimer(timeout)
			if s.timeout > 0 {
				timeout.Reset(s.timeout)
			}

		case <-timeout.C:
			if !c.expireCustom() {
				// Ended explicitly first; the pending schedule message
				// re-arms the sample timer.
				continue
			}
			armed = Periodic
			next = time.Now().Add(c.intervalFor(Periodic))
			stopTimer(sample)
			sample.Reset(time.Until(next))

		case <-sample.C:
			if c.Regime() != armed {
				// Regime changed under us; the schedule message that
				// changed it re-arms the timer.
				continue
			}
			c.collect(armed, next)
			next = next.Add(c.intervalFor(armed))
			sample.Reset(time.Until(next))
		}
	}
}

func (c *Collector) intervalFor(r Regime) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch r {
	case BootTime:
		return c.boot.interval
	case Custom:
		return c.custom.interval
	default:
		return c.periodic.interval
	}
}

func (c *Collector) infoFor(r Regime) *collectionInfo {
	switch r {
	case BootTime:
		return &c.boot
	case Custom:
		return &c.custom
	default:
		return &c.periodic
	}
}

// expireCustom handles the custom collection timeout: data is discarded
// without a dump and periodic collection resumes. Returns false when the
// collection was already ended explicitly.
func (c *Collector) expireCustom() bool {
	c.mu.Lock()
	if c.regime != Custom {
		c.mu.Unlock()
		return false
	}
	discarded := len(c.custom.records)
	c.custom.clear()
	c.regime = Periodic
	c.mu.Unlock()

	metrics.HistorySize(Custom.String(), 0)
	c.log.Warn("custom collection timed out, discarding data",
		slog.Int("samples_discarded", discarded))
	return true
}

// collect performs one sampling pass for the given regime. The three
// source reads run concurrently; a failed read zeroes its sub-record and
// never aborts the cycle. The commit is one critical section and is
// dropped if the regime changed while reading.
func (c *Collector) collect(regime Regime, intended time.Time) {
	start := time.Now()

	var (
		usage   map[uint32]procfs.UidIoUsage
		sys     procfs.SystemStats
		sysOK   bool
		procs   []procfs.ProcessStats
		procsOK bool
	)
	var g errgroup.Group
	if c.uidIoOK {
		g.Go(func() error {
			u, err := c.uidIo.Collect()
			if err != nil {
				c.log.Warn("uid I/O read failed", slog.Any("err", err))
				metrics.SourceFailed("uid_io")
				return nil
			}
			usage = u
			return nil
		})
	}
	if c.systemOK {
		g.Go(func() error {
			s, err := c.system.Collect()
			if err != nil {
				c.log.Warn("system stat read failed", slog.Any("err", err))
				metrics.SourceFailed("system")
				return nil
			}
			sys, sysOK = s, true
			return nil
		})
	}
	if c.processOK {
		g.Go(func() error {
			p, err := c.process.Collect()
			if err != nil {
				c.log.Warn("process stat read failed", slog.Any("err", err))
				metrics.SourceFailed("process")
				return nil
			}
			procs, procsOK = p, true
			return nil
		})
	}
	_ = g.Wait()

	names := c.resolveNames(usage, procs)
	nameOf := func(uid uint32) string {
		if n, ok := names[uid]; ok {
			return n
		}
		return uidmap.Placeholder(uid)
	}

	c.mu.Lock()
	lastFaults := c.lastMajorFaults
	c.mu.Unlock()

	s := Sample{Time: time.Now()}
	if usage != nil {
		s.UidIo = buildUidIoSnapshot(usage, c.opts.TopN, nameOf)
	}
	if sysOK {
		s.SystemIo = buildSystemIoSnapshot(sys)
	}
	if procsOK {
		s.ProcessIo = buildProcessIoSnapshot(procs, c.opts.TopN, lastFaults, nameOf)
	}

	c.mu.Lock()
	if c.regime != regime {
		// Transitioned away (or terminated) mid-read; drop the sample.
		c.mu.Unlock()
		return
	}
	for uid, name := range names {
		c.uidToName[uid] = name
	}
	info := c.infoFor(regime)
	info.append(s)
	info.lastUptime = intended
	if procsOK {
		c.lastMajorFaults = s.ProcessIo.TotalMajorFaults
	}
	retained := len(info.records)
	c.mu.Unlock()

	metrics.CycleCompleted(regime.String(), time.Since(start).Seconds())
	metrics.HistorySize(regime.String(), retained)
	c.log.Debug("sample collected",
		slog.String("regime", regime.String()),
		slog.Int("retained", retained),
		slog.Duration("took", time.Since(start)))
}

// resolveNames returns names for every UID seen this cycle that is
// cached or newly resolvable. The resolver runs outside the lock; misses
// are left out and retried on later sightings.
func (c *Collector) resolveNames(usage map[uint32]procfs.UidIoUsage, procs []procfs.ProcessStats) map[uint32]string {
	seen := make(map[uint32]struct{}, len(usage)+len(procs))
	for uid := range usage {
		seen[uid] = struct{}{}
	}
	for _, p := range procs {
		seen[p.Uid] = struct{}{}
	}

	names := make(map[uint32]string, len(seen))
	var missing []uint32
	c.mu.Lock()
	for uid := range seen {
		if name, ok := c.uidToName[uid]; ok {
			names[uid] = name
		} else {
			missing = append(missing, uid)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 || c.resolver == nil {
		return names
	}
	resolved, err := c.resolver.Resolve(missing)
	if err != nil {
		c.log.Warn("uid name resolution failed", slog.Any("err", err))
	}
	for uid, name := range resolved {
		names[uid] = name
	}
	return names
}

// stopTimer stops a timer and drains its channel so a later Reset cannot
// race a stale tick. Only the run loop touches the timers.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
