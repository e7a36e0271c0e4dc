package perf

import "time"

// collectionInfo is the per-regime schedule and bounded sample history.
// Records stay in insertion order, which is chronological; once the cap
// is reached the oldest record is evicted first.
type collectionInfo struct {
	interval     time.Duration
	maxCacheSize int
	lastUptime   time.Time // intended time of the most recent sample
	records      []Sample
}

func (ci *collectionInfo) append(s Sample) {
	if ci.maxCacheSize > 0 && len(ci.records) >= ci.maxCacheSize {
		n := copy(ci.records, ci.records[len(ci.records)-ci.maxCacheSize+1:])
		ci.records = ci.records[:n]
	}
	ci.records = append(ci.records, s)
}

func (ci *collectionInfo) clear() {
	ci.records = nil
	ci.lastUptime = time.Time{}
}

// snapshot copies the history out so rendering can happen off-lock.
func (ci *collectionInfo) snapshot() []Sample {
	if len(ci.records) == 0 {
		return nil
	}
	out := make([]Sample, len(ci.records))
	copy(out, ci.records)
	return out
}
