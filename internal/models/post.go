package models

import "time"

// PostRecord is one append-only audit entry for a published post. At most
// one record exists per RawItem id across the life of the system.
type PostRecord struct {
	ID             string       `json:"id" badgerhold:"key"`
	ItemID         string       `json:"item_id" badgerholdIndex:"ItemID"`
	PlatformPostID string       `json:"platform_post_id"`
	Text           string       `json:"text"`
	Instrument     string       `json:"instrument,omitempty"`
	Action         SignalAction `json:"action"`
	Sentiment      Sentiment    `json:"sentiment"`
	ChartAttached  bool         `json:"chart_attached"`
	TestMode       bool         `json:"test_mode,omitempty"`
	PostedAt       time.Time    `json:"posted_at"`
}
