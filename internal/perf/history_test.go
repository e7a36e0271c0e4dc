package perf

import (
	"testing"
	"time"
)

func sampleAt(sec int) Sample {
	return Sample{Time: time.Unix(int64(sec), 0)}
}

func TestCollectionInfo_EvictsOldestAtCap(t *testing.T) {
	ci := collectionInfo{maxCacheSize: 3}
	for i := 1; i <= 5; i++ {
		ci.append(sampleAt(i))
	}

	if len(ci.records) != 3 {
		t.Fatalf("records length = %d, want 3", len(ci.records))
	}
	for i, want := range []int64{3, 4, 5} {
		if got := ci.records[i].Time.Unix(); got != want {
			t.Fatalf("records[%d].Time = %d, want %d", i, got, want)
		}
	}
}

func TestCollectionInfo_Unbounded(t *testing.T) {
	var ci collectionInfo
	for i := 0; i < 500; i++ {
		ci.append(sampleAt(i))
	}
	if len(ci.records) != 500 {
		t.Fatalf("records length = %d, want 500", len(ci.records))
	}
}

func TestCollectionInfo_SnapshotIsIndependent(t *testing.T) {
	ci := collectionInfo{maxCacheSize: 10}
	ci.append(sampleAt(1))
	snap := ci.snapshot()
	ci.append(sampleAt(2))

	if len(snap) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(snap))
	}
	snap[0].Time = time.Unix(99, 0)
	if ci.records[0].Time.Unix() != 1 {
		t.Fatal("mutating the snapshot changed the history")
	}
}

func TestCollectionInfo_Clear(t *testing.T) {
	ci := collectionInfo{maxCacheSize: 10, lastUptime: time.Now()}
	ci.append(sampleAt(1))
	ci.clear()

	if len(ci.records) != 0 {
		t.Fatalf("records length after clear = %d, want 0", len(ci.records))
	}
	if !ci.lastUptime.IsZero() {
		t.Fatal("lastUptime not reset by clear")
	}
	if ci.snapshot() != nil {
		t.Fatal("snapshot of cleared history is not nil")
	}
}
