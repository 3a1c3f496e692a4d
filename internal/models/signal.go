package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Sentiment is the direction the analysis assigns to a headline.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// SignalAction is the trading action the analysis recommends.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
	ActionNone SignalAction = "NONE"
)

// ParseSentiment maps free text onto a Sentiment, defaulting to NEUTRAL.
// The second return is false when the text was non-empty but unrecognized.
func ParseSentiment(s string) (Sentiment, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "POSITIVE", "BULLISH":
		return SentimentPositive, true
	case "NEGATIVE", "BEARISH":
		return SentimentNegative, true
	case "NEUTRAL", "":
		return SentimentNeutral, true
	}
	return SentimentNeutral, false
}

// ParseAction maps free text onto a SignalAction, defaulting to NONE.
// The second return is false when the text was non-empty but unrecognized.
func ParseAction(s string) (SignalAction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return ActionBuy, true
	case "SELL", "SHORT":
		return ActionSell, true
	case "HOLD":
		return ActionHold, true
	case "NONE", "IGNORE", "":
		return ActionNone, true
	}
	return ActionNone, false
}

// Signal is the normalized actionable-or-not verdict derived from exactly
// one RawItem. Fields are validated with go-playground/validator tags.
type Signal struct {
	ItemID         string       `json:"item_id" validate:"required"`
	Summary        string       `json:"summary" validate:"required"`
	Sentiment      Sentiment    `json:"sentiment" validate:"required,oneof=POSITIVE NEGATIVE NEUTRAL"`
	Instrument     string       `json:"instrument,omitempty"`
	Action         SignalAction `json:"action" validate:"required,oneof=BUY SELL HOLD NONE"`
	ExpectedImpact string       `json:"expected_impact,omitempty"`
	Rationale      string       `json:"rationale,omitempty"`
	Model          string       `json:"model,omitempty"`
	ExtractedAt    time.Time    `json:"extracted_at"`
}

// Actionable reports whether the signal should be posted: a buy or sell
// call with an identified instrument. HOLD/NONE and instrument-less
// signals are dropped without posting.
func (s *Signal) Actionable() bool {
	if s == nil {
		return false
	}
	if s.Instrument == "" {
		return false
	}
	return s.Action == ActionBuy || s.Action == ActionSell
}

// Validate validates the signal using go-playground/validator.
func (s *Signal) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ParseOutcome tags the result of parsing an LLM response.
type ParseOutcome string

const (
	ParseSuccess   ParseOutcome = "SUCCESS"
	ParseMalformed ParseOutcome = "MALFORMED"
	ParseEmpty     ParseOutcome = "EMPTY"
)

// ParseResult is the tagged-variant outcome of extracting a Signal from a
// raw LLM response. Signal is non-nil only when Outcome is SUCCESS. Raw
// preserves the response text for MALFORMED results so operators can
// inspect what the model actually returned.
type ParseResult struct {
	Outcome ParseOutcome `json:"outcome"`
	Signal  *Signal      `json:"signal,omitempty"`
	Raw     string       `json:"raw,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

// Success builds a SUCCESS result.
func Success(sig *Signal) ParseResult {
	return ParseResult{Outcome: ParseSuccess, Signal: sig}
}

// Malformed builds a MALFORMED result carrying the raw response text.
func Malformed(raw, reason string) ParseResult {
	return ParseResult{Outcome: ParseMalformed, Raw: raw, Reason: reason}
}

// Empty builds an EMPTY result for responses with no actionable content.
func Empty(reason string) ParseResult {
	return ParseResult{Outcome: ParseEmpty, Reason: reason}
}
