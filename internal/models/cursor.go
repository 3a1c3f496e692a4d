package models

import "time"

// PollCursor is the explicit per-source poll state passed into and
// returned from each cycle, persisted between cycles. There is no other
// mutable poll state in the process.
type PollCursor struct {
	SourceName          string    `json:"source_name"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastItemID          string    `json:"last_item_id,omitempty"`
	Cycles              int       `json:"cycles"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CooldownUntil       time.Time `json:"cooldown_until,omitempty"`
}

// InCooldown reports whether the source is still inside a fetch cooldown
// window at the given time.
func (c *PollCursor) InCooldown(now time.Time) bool {
	return !c.CooldownUntil.IsZero() && now.Before(c.CooldownUntil)
}

// RecordSuccess resets failure tracking after a clean fetch.
func (c *PollCursor) RecordSuccess(now time.Time, lastItemID string) {
	c.LastRunAt = now
	c.Cycles++
	c.ConsecutiveFailures = 0
	c.CooldownUntil = time.Time{}
	if lastItemID != "" {
		c.LastItemID = lastItemID
	}
}

// RecordFailure increments failure tracking and, once failures is
// a multiple of threshold, opens a cooldown window of the given length.
func (c *PollCursor) RecordFailure(now time.Time, threshold int, cooldown time.Duration) {
	c.LastRunAt = now
	c.Cycles++
	c.ConsecutiveFailures++
	if threshold > 0 && c.ConsecutiveFailures%threshold == 0 {
		c.CooldownUntil = now.Add(cooldown)
	}
}
