package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

// signalDTO is the loose shape accepted from the model before validation.
type signalDTO struct {
	Summary        string `json:"summary"`
	Sentiment      string `json:"sentiment"`
	Instrument     string `json:"instrument"`
	Action         string `json:"action"`
	Rationale      string `json:"rationale"`
	ExpectedImpact string `json:"expected_impact"`
}

func (d *signalDTO) empty() bool {
	return d.Summary == "" && d.Sentiment == "" && d.Instrument == "" &&
		d.Action == "" && d.Rationale == "" && d.ExpectedImpact == ""
}

// ParseResponse turns a raw model response into a tagged ParseResult.
// Parsing is strict: enum text outside the known sets is MALFORMED, never
// coerced into a default signal.
func ParseResponse(itemID, raw string) models.ParseResult {
	body, ok := extractJSONObject(raw)
	if !ok {
		return models.Malformed(raw, "no JSON object found in response")
	}

	var dto signalDTO
	if err := json.Unmarshal([]byte(body), &dto); err != nil {
		return models.Malformed(raw, fmt.Sprintf("invalid JSON: %v", err))
	}

	dto.Summary = strings.TrimSpace(dto.Summary)
	dto.Instrument = strings.TrimSpace(dto.Instrument)
	dto.Rationale = strings.TrimSpace(dto.Rationale)
	dto.ExpectedImpact = strings.TrimSpace(dto.ExpectedImpact)

	if dto.empty() {
		return models.Empty("model returned an empty object")
	}

	sentiment, recognized := models.ParseSentiment(dto.Sentiment)
	if !recognized {
		return models.Malformed(raw, fmt.Sprintf("unknown sentiment %q", dto.Sentiment))
	}

	action, recognized := models.ParseAction(dto.Action)
	if !recognized {
		return models.Malformed(raw, fmt.Sprintf("unknown action %q", dto.Action))
	}

	// Defaults across the board with no instrument means the model had
	// nothing to say about this headline.
	if dto.Summary == "" && dto.Instrument == "" &&
		sentiment == models.SentimentNeutral && action == models.ActionNone {
		return models.Empty("no signal content in response")
	}

	signal := &models.Signal{
		ItemID:         itemID,
		Summary:        dto.Summary,
		Sentiment:      sentiment,
		Instrument:     strings.ToUpper(dto.Instrument),
		Action:         action,
		ExpectedImpact: dto.ExpectedImpact,
		Rationale:      dto.Rationale,
		ExtractedAt:    time.Now(),
	}

	if err := signal.Validate(); err != nil {
		return models.Malformed(raw, fmt.Sprintf("signal validation failed: %v", err))
	}

	return models.Success(signal)
}

// extractJSONObject strips code fences and surrounding prose, returning
// the outermost brace-delimited object.
func extractJSONObject(raw string) (string, bool) {
	text := strings.TrimSpace(raw)

	// Strip markdown code fences the models like to add
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return "", false
	}

	return text[start : end+1], true
}
