// Package timeline collects anomaly events from concurrently running
// inspectors and produces the final ordered, deduplicated timeline.
package timeline

import (
	"math"
	"sort"
	"sync"

	"github.com/veracity-labs/veracity/pkg/models"
)

// Aggregator accepts events from any goroutine during the inspection phase.
// Finalize is called once, after all inspectors have terminated.
type Aggregator struct {
	mu     sync.Mutex
	events []models.AnomalyEvent
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends events. Safe for concurrent use.
func (a *Aggregator) Add(events ...models.AnomalyEvent) {
	if len(events) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range events {
		a.events = append(a.events, e.Clone())
	}
}

// Count returns the number of raw events collected so far.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// dedupeKey identifies events considered duplicates: same module and tag
// with timestamp and duration equal after rounding to 0.01s.
type dedupeKey struct {
	module  string
	tag     string
	tsHund  int64
	durHund int64
}

// Finalize produces the ordered timeline:
//  1. duplicates merged in arrival order, shallow metadata merge with the
//     later writer winning on key collision
//  2. events running past effectiveDurationSec clamped to end there and
//     tagged clamped=true
//  3. sorted by (timestamp, module, tag)
func (a *Aggregator) Finalize(effectiveDurationSec float64) []models.AnomalyEvent {
	a.mu.Lock()
	raw := make([]models.AnomalyEvent, len(a.events))
	copy(raw, a.events)
	a.mu.Unlock()

	merged := make([]models.AnomalyEvent, 0, len(raw))
	index := make(map[dedupeKey]int, len(raw))

	for _, e := range raw {
		key := dedupeKey{
			module:  e.Module,
			tag:     e.EventTag,
			tsHund:  int64(math.Round(e.TimestampSec * 100)),
			durHund: int64(math.Round(e.DurationSec * 100)),
		}
		if i, ok := index[key]; ok {
			merged[i] = mergeMetadata(merged[i], e)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, e.Clone())
	}

	for i := range merged {
		merged[i] = clamp(merged[i], effectiveDurationSec)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.TimestampSec != b.TimestampSec {
			return a.TimestampSec < b.TimestampSec
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.EventTag < b.EventTag
	})

	return merged
}

// mergeMetadata keeps dst and overlays src's metadata keys onto it.
func mergeMetadata(dst, src models.AnomalyEvent) models.AnomalyEvent {
	if len(src.Metadata) == 0 {
		return dst
	}
	if dst.Metadata == nil {
		dst.Metadata = make(map[string]any, len(src.Metadata))
	}
	for k, v := range src.Metadata {
		dst.Metadata[k] = v
	}
	return dst
}

// clamp bounds an event to [0, effective]. Negative inputs collapse to zero;
// anything running past the effective duration is cut and marked.
func clamp(e models.AnomalyEvent, effective float64) models.AnomalyEvent {
	if e.TimestampSec < 0 {
		e.TimestampSec = 0
	}
	if e.DurationSec < 0 {
		e.DurationSec = 0
	}
	if e.TimestampSec > effective {
		e.TimestampSec = effective
		e.DurationSec = 0
		e = tagClamped(e)
		return e
	}
	if e.TimestampSec+e.DurationSec > effective {
		e.DurationSec = effective - e.TimestampSec
		e = tagClamped(e)
	}
	return e
}

func tagClamped(e models.AnomalyEvent) models.AnomalyEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any, 1)
	}
	e.Metadata["clamped"] = true
	return e
}
