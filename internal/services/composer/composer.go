// -----------------------------------------------------------------------
// Composer - deterministic signal-to-post formatting
// -----------------------------------------------------------------------

package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

const (
	// DefaultTargetLength leaves headroom under the platform's weighted
	// character count, which bills most emoji as two characters.
	DefaultTargetLength = 240
	// DefaultRationaleMax bounds the rationale line before any further
	// shrinking the overall target forces.
	DefaultRationaleMax = 100

	ellipsis = "…"
)

var sentimentMarkers = map[models.Sentiment]string{
	models.SentimentPositive: "🟢",
	models.SentimentNegative: "🔴",
	models.SentimentNeutral:  "⚪",
}

var actionMarkers = map[models.SignalAction]string{
	models.ActionBuy:  "💰",
	models.ActionSell: "🛑",
	models.ActionHold: "🤷",
}

// Service formats signals into post bodies. Composition is a pure
// function of the signal and the configured limits.
type Service struct {
	target       int
	rationaleMax int
	hashtags     string
}

// NewService creates the composer with the configured limits.
func NewService(config *common.ComposerConfig, logger arbor.ILogger) *Service {
	target := config.TargetLength
	if target <= 0 {
		target = DefaultTargetLength
	}
	rationaleMax := config.RationaleMax
	if rationaleMax <= 0 {
		rationaleMax = DefaultRationaleMax
	}

	logger.Debug().
		Int("target_length", target).
		Int("rationale_max", rationaleMax).
		Msg("Composer initialized")

	return &Service{
		target:       target,
		rationaleMax: rationaleMax,
		hashtags:     strings.Join(config.Hashtags, " "),
	}
}

// Compose renders a signal into a post body no longer than the target
// length. chartSymbol is the exchange-qualified symbol the chart was
// captured for; its ticker code wins over the raw model instrument when
// both are present. Overflow is absorbed by the hashtags, then the
// rationale, then the summary, in that order.
func (s *Service) Compose(signal *models.Signal, chartSymbol string) (string, error) {
	if signal == nil || strings.TrimSpace(signal.Summary) == "" {
		return "", fmt.Errorf("cannot compose a post from an empty signal")
	}

	summary := strings.TrimSpace(signal.Summary)
	rationale := truncate(strings.TrimSpace(signal.Rationale), s.rationaleMax)
	tag := s.instrumentTag(signal, chartSymbol)

	body := s.assemble(signal, summary, rationale, tag, true)
	if utf8.RuneCountInString(body) <= s.target {
		return body, nil
	}

	body = s.assemble(signal, summary, rationale, tag, false)
	if over := utf8.RuneCountInString(body) - s.target; over > 0 && rationale != "" {
		budget := utf8.RuneCountInString(rationale) - over
		rationale = truncate(rationale, budget)
		body = s.assemble(signal, summary, rationale, tag, false)
	}

	if over := utf8.RuneCountInString(body) - s.target; over > 0 {
		budget := utf8.RuneCountInString(summary) - over
		summary = truncate(summary, budget)
		body = s.assemble(signal, summary, rationale, tag, false)
	}

	return truncate(body, s.target), nil
}

// assemble lays the post out line by line. Empty parts drop their line
// so truncation never leaves blank rows behind.
func (s *Service) assemble(signal *models.Signal, summary, rationale, tag string, withHashtags bool) string {
	lines := make([]string, 0, 6)

	if summary != "" {
		lines = append(lines, "🚨 "+summary)
	}
	lines = append(lines, s.verdictLine(signal))
	if signal.ExpectedImpact != "" {
		lines = append(lines, "Expected impact: "+signal.ExpectedImpact)
	}
	if rationale != "" {
		lines = append(lines, rationale)
	}
	if tag != "" {
		lines = append(lines, tag)
	}
	if withHashtags && s.hashtags != "" {
		lines = append(lines, s.hashtags)
	}

	return strings.Join(lines, "\n")
}

func (s *Service) verdictLine(signal *models.Signal) string {
	sentiment, ok := sentimentMarkers[signal.Sentiment]
	if !ok {
		sentiment = sentimentMarkers[models.SentimentNeutral]
	}
	action, ok := actionMarkers[signal.Action]
	if !ok {
		return fmt.Sprintf("%s %s", sentiment, titleCase(string(signal.Sentiment)))
	}
	return fmt.Sprintf("%s %s | %s %s signal", sentiment, titleCase(string(signal.Sentiment)), action, signal.Action)
}

// instrumentTag prefers the ticker the chart was actually resolved to.
func (s *Service) instrumentTag(signal *models.Signal, chartSymbol string) string {
	code := signal.Instrument
	if chartSymbol != "" {
		code = common.ParseInstrument(chartSymbol).Code
	}
	if code == "" {
		return ""
	}
	return "$" + strings.ToUpper(code)
}

// truncate cuts text to max runes, replacing the final rune with an
// ellipsis when a cut happens. Zero or negative budgets drop the text.
func truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max == 1 {
		return ellipsis
	}
	return string(runes[:max-1]) + ellipsis
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}
