package slirc

import (
	"sort"
	"sync"
	"time"

	gutils "github.com/Laisky/go-utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DispatchRecord is one entry in a Manager's recent-dispatch diagnostics
// ring, recorded after every handler invocation.
type DispatchRecord struct {
	Sequence  uint64
	Timestamp time.Time
	Identity  EventIdentity
	Priority  Priority
	Duration  time.Duration
	Err       error
}

// diagnosticsRing keeps the last N dispatch records for inspection via
// Manager.RecentDispatches, grounded on webitel-im-delivery-service's use
// of golang-lru as a bounded recent-activity buffer. Every record is
// inserted under a fresh monotonically increasing key, so the cache's own
// least-recently-used eviction order doubles as insertion order without
// any extra bookkeeping.
type diagnosticsRing struct {
	mu      sync.Mutex
	cache   *lru.Cache[uint64, DispatchRecord]
	nextSeq uint64
}

func newDiagnosticsRing(size int) *diagnosticsRing {
	if size <= 0 {
		size = 1
	}
	cache, _ := lru.New[uint64, DispatchRecord](size)
	return &diagnosticsRing{cache: cache}
}

func (d *diagnosticsRing) record(identity EventIdentity, priority Priority, duration time.Duration, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextSeq++
	d.cache.Add(d.nextSeq, DispatchRecord{
		Sequence:  d.nextSeq,
		Timestamp: gutils.Clock.GetUTCNow(),
		Identity:  identity,
		Priority:  priority,
		Duration:  duration,
		Err:       err,
	})
}

// Recent returns every retained record, oldest first.
func (d *diagnosticsRing) Recent() []DispatchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DispatchRecord, 0, d.cache.Len())
	for _, key := range d.cache.Keys() {
		if rec, ok := d.cache.Peek(key); ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
