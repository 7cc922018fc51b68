package core

// SequenceValidator tracks upstream source sequences per partition.
// Not thread-safe — only accessed from the single-threaded engine loop.
//
// Price feeds get special handling: stale quotes are silently skipped
// (re-deliveries and out-of-order oracle messages are routine) and gaps are
// tolerated, because a dropped quote only delays the next mark, it never
// corrupts state.
type SequenceValidator struct {
	lastApplied map[string]int64 // partition -> highest applied sequence
	metrics     *SequenceMetrics
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		lastApplied: make(map[string]int64),
		metrics:     NewSequenceMetrics(),
	}
}

// FreshPrice reports whether a price sequence advances the market's feed.
// Stale or repeated sequences return false; gaps are recorded and accepted.
func (sv *SequenceValidator) FreshPrice(marketID string, priceSequence int64) bool {
	partition := "price:" + marketID

	last, seen := sv.lastApplied[partition]
	if seen && priceSequence <= last {
		sv.metrics.RecordStale(partition)
		return false
	}
	if seen && priceSequence > last+1 {
		// Gap detected - accept and count; the feed is allowed to skip
		sv.metrics.RecordPriceGap(marketID)
	}

	sv.lastApplied[partition] = priceSequence
	return true
}

// Fresh reports whether a snapshot sequence advances its partition. Unlike
// prices, repeated delivery of the same snapshot is common (NATS redelivery),
// so staleness here is informational rather than an error.
func (sv *SequenceValidator) Fresh(partition string, sourceSequence int64) bool {
	last, seen := sv.lastApplied[partition]
	if seen && sourceSequence <= last {
		sv.metrics.RecordStale(partition)
		return false
	}
	sv.lastApplied[partition] = sourceSequence
	return true
}

// LastApplied returns the highest applied sequence for a partition.
func (sv *SequenceValidator) LastApplied(partition string) int64 {
	return sv.lastApplied[partition]
}

// SetLastApplied seeds a partition (used during warm start).
func (sv *SequenceValidator) SetLastApplied(partition string, seq int64) {
	sv.lastApplied[partition] = seq
}

// --- Metrics ---

// SequenceMetrics tracks sequence validation stats.
// Not thread-safe — only accessed from the single-threaded engine loop.
type SequenceMetrics struct {
	stale     map[string]int64 // partition -> stale count
	priceGaps map[string]int64 // market_id -> price gap count
}

func NewSequenceMetrics() *SequenceMetrics {
	return &SequenceMetrics{
		stale:     make(map[string]int64),
		priceGaps: make(map[string]int64),
	}
}

func (m *SequenceMetrics) RecordStale(partition string) {
	m.stale[partition]++
}

func (m *SequenceMetrics) RecordPriceGap(marketID string) {
	m.priceGaps[marketID]++
}

func (m *SequenceMetrics) GetStale(partition string) int64 {
	return m.stale[partition]
}

func (m *SequenceMetrics) GetPriceGaps(marketID string) int64 {
	return m.priceGaps[marketID]
}
