package extractor

import (
	"strings"
	"testing"

	"github.com/ternarybob/nuntius/internal/models"
)

func TestParseResponseCleanJSON(t *testing.T) {
	raw := `{"summary": "US payrolls beat forecasts", "sentiment": "POSITIVE", "instrument": "SPY", "action": "BUY", "rationale": "Strong labor market supports equities", "expected_impact": "+1%"}`

	result := ParseResponse("rss:item-1", raw)
	if result.Outcome != models.ParseSuccess {
		t.Fatalf("Expected SUCCESS, got %s (%s)", result.Outcome, result.Reason)
	}

	sig := result.Signal
	if sig.ItemID != "rss:item-1" {
		t.Errorf("Expected item id propagated, got %s", sig.ItemID)
	}
	if sig.Sentiment != models.SentimentPositive {
		t.Errorf("Expected POSITIVE, got %s", sig.Sentiment)
	}
	if sig.Instrument != "SPY" {
		t.Errorf("Expected SPY, got %s", sig.Instrument)
	}
	if sig.Action != models.ActionBuy {
		t.Errorf("Expected BUY, got %s", sig.Action)
	}
	if sig.ExpectedImpact != "+1%" {
		t.Errorf("Expected +1%%, got %s", sig.ExpectedImpact)
	}
	if !sig.Actionable() {
		t.Error("Expected actionable signal")
	}
}

func TestParseResponseCodeFence(t *testing.T) {
	raw := "```json\n" + `{"summary": "Gold rallies", "sentiment": "positive", "instrument": "gld", "action": "buy"}` + "\n```"

	result := ParseResponse("rss:item-2", raw)
	if result.Outcome != models.ParseSuccess {
		t.Fatalf("Expected SUCCESS for fenced JSON, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Signal.Instrument != "GLD" {
		t.Errorf("Expected instrument upper-cased, got %s", result.Signal.Instrument)
	}
	if result.Signal.Sentiment != models.SentimentPositive {
		t.Errorf("Expected lowercase sentiment recognized, got %s", result.Signal.Sentiment)
	}
}

func TestParseResponseSurroundingProse(t *testing.T) {
	raw := `Here is my analysis of the headline:
{"summary": "Oil climbs on supply cuts", "sentiment": "POSITIVE", "instrument": "USO", "action": "BUY", "rationale": "Supply reduction lifts prices"}
Let me know if you need anything else.`

	result := ParseResponse("rss:item-3", raw)
	if result.Outcome != models.ParseSuccess {
		t.Fatalf("Expected SUCCESS for prose-wrapped JSON, got %s (%s)", result.Outcome, result.Reason)
	}
}

func TestParseResponseDefaults(t *testing.T) {
	// Missing sentiment and action default to NEUTRAL/NONE
	raw := `{"summary": "Minor regulatory update", "instrument": ""}`

	result := ParseResponse("rss:item-4", raw)
	if result.Outcome != models.ParseSuccess {
		t.Fatalf("Expected SUCCESS, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Signal.Sentiment != models.SentimentNeutral {
		t.Errorf("Expected default NEUTRAL, got %s", result.Signal.Sentiment)
	}
	if result.Signal.Action != models.ActionNone {
		t.Errorf("Expected default NONE, got %s", result.Signal.Action)
	}
	if result.Signal.Actionable() {
		t.Error("Defaulted signal must not be actionable")
	}
}

func TestParseResponseIgnoreAction(t *testing.T) {
	raw := `{"summary": "Nothing tradeable here", "sentiment": "neutral", "action": "ignore"}`

	result := ParseResponse("rss:item-5", raw)
	if result.Outcome != models.ParseSuccess {
		t.Fatalf("Expected SUCCESS, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Signal.Action != models.ActionNone {
		t.Errorf("Expected ignore mapped to NONE, got %s", result.Signal.Action)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"no braces", "I could not analyze this headline.", "no JSON object"},
		{"broken json", `{"summary": "x", "sentiment": }`, "invalid JSON"},
		{"unknown sentiment", `{"summary": "x", "sentiment": "AMBIVALENT", "action": "BUY"}`, "unknown sentiment"},
		{"unknown action", `{"summary": "x", "sentiment": "POSITIVE", "action": "YOLO"}`, "unknown action"},
		{"missing summary", `{"sentiment": "POSITIVE", "instrument": "SPY", "action": "BUY"}`, "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseResponse("rss:item-6", tt.raw)
			if result.Outcome != models.ParseMalformed {
				t.Fatalf("Expected MALFORMED, got %s", result.Outcome)
			}
			if !strings.Contains(result.Reason, tt.reason) {
				t.Errorf("Expected reason containing %q, got %q", tt.reason, result.Reason)
			}
			if result.Raw == "" {
				t.Error("Expected raw response preserved for inspection")
			}
		})
	}
}

func TestParseResponseEmpty(t *testing.T) {
	for _, raw := range []string{`{}`, `{"summary": "", "instrument": "", "action": "", "sentiment": ""}`} {
		result := ParseResponse("rss:item-7", raw)
		if result.Outcome != models.ParseEmpty {
			t.Errorf("Expected EMPTY for %q, got %s", raw, result.Outcome)
		}
	}
}

func TestParseResponseDeterministic(t *testing.T) {
	raw := `{"summary": "Fed holds rates", "sentiment": "NEUTRAL", "instrument": "TLT", "action": "HOLD"}`

	first := ParseResponse("rss:item-8", raw)
	second := ParseResponse("rss:item-8", raw)

	if first.Outcome != second.Outcome {
		t.Fatal("Expected identical outcomes for identical input")
	}
	if first.Signal.Instrument != second.Signal.Instrument ||
		first.Signal.Action != second.Signal.Action ||
		first.Signal.Sentiment != second.Signal.Sentiment {
		t.Error("Expected identical signals for identical input")
	}
}

func TestBuildMessages(t *testing.T) {
	item := models.RawItem{
		ID:     "rss:item-9",
		Title:  "US Payrolls beat expectations",
		Source: models.SourceRSS,
	}

	messages := BuildMessages(item)
	if len(messages) != 2 {
		t.Fatalf("Expected system + user messages, got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("Expected system role first, got %s", messages[0].Role)
	}
	for _, key := range []string{"summary", "sentiment", "instrument", "action", "rationale", "expected_impact"} {
		if !strings.Contains(messages[0].Content, key) {
			t.Errorf("Expected prompt to name key %q", key)
		}
	}
	if !strings.Contains(messages[1].Content, item.Title) {
		t.Error("Expected headline in user message")
	}
}
