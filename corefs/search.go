package corefs

import "time"

// SearchHit is one matched entry emitted by a search provider.
type SearchHit struct {
	URI     Location
	Rank    float64 // fts_rank; higher is a better match
	Snippet string  // optional, already markup-escaped
	MTime   time.Time
	ATime   time.Time
	CTime   time.Time

	// Provider identifies which constituent provider produced the hit,
	// for diagnostics; it plays no role in deduplication (that is by URI
	// alone, per spec.md §8 property 8).
	Provider string
}

// RunStatus is the terminal status a SearchEngine reports for one run.
type RunStatus int

// The statuses a SearchEngine run can end in. StatusRunning is never
// delivered to subscribers — it is the engine's internal bookkeeping state
// recovered from the original nautilus-search-engine.c three-state enum
// (see SPEC_FULL.md §10 item 2).
const (
	StatusRunning RunStatus = iota
	StatusNormal
	StatusRestarting
)
