package eodhd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quote is a normalized real-time quote.
type Quote struct {
	Code          string
	Timestamp     time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	PreviousClose float64
	Volume        int64
}

// quoteDTO matches the real-time endpoint payload. Numeric fields come
// back as the string "NA" outside trading windows, so they decode
// through naFloat.
type quoteDTO struct {
	Code          string  `json:"code"`
	Timestamp     int64   `json:"timestamp"`
	Open          naFloat `json:"open"`
	High          naFloat `json:"high"`
	Low           naFloat `json:"low"`
	Close         naFloat `json:"close"`
	PreviousClose naFloat `json:"previousClose"`
	Volume        naFloat `json:"volume"`
}

func (d *quoteDTO) toQuote() *Quote {
	return &Quote{
		Code:          d.Code,
		Timestamp:     time.Unix(d.Timestamp, 0).UTC(),
		Open:          float64(d.Open),
		High:          float64(d.High),
		Low:           float64(d.Low),
		Close:         float64(d.Close),
		PreviousClose: float64(d.PreviousClose),
		Volume:        int64(d.Volume),
	}
}

// naFloat decodes numbers, quoted numbers, and the "NA" marker (as zero).
type naFloat float64

func (f *naFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "NA" || s == "null" || s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("unexpected numeric value %q: %w", s, err)
	}
	*f = naFloat(v)
	return nil
}

// APIError represents an error from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limit exceeded, retry after %v", e.RetryAfter)
}
