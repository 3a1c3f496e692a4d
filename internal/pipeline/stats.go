package pipeline

import "time"

// CycleStats counts what happened to the items of one poll cycle.
type CycleStats struct {
	Cycle     int
	Fetched   int
	Skipped   int // already seen
	Filtered  int // dropped before extraction (relevance, dedup)
	Extracted int
	Dropped   int // extracted but not actionable
	Posted    int
	Failed    int
	Duration  time.Duration
}

// LifetimeStats accumulates cycle stats over the process lifetime.
type LifetimeStats struct {
	Cycles    int
	Fetched   int
	Filtered  int
	Extracted int
	Posted    int
	Failed    int
	StartedAt time.Time
}

func (l *LifetimeStats) add(c CycleStats) {
	l.Cycles++
	l.Fetched += c.Fetched
	l.Filtered += c.Filtered + c.Dropped
	l.Extracted += c.Extracted
	l.Posted += c.Posted
	l.Failed += c.Failed
}
