package composer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

func newTestComposer(t *testing.T, config *common.ComposerConfig) *Service {
	t.Helper()
	if config == nil {
		config = &common.ComposerConfig{
			TargetLength: 240,
			RationaleMax: 100,
			Hashtags:     []string{"#trading", "#markets"},
		}
	}
	return NewService(config, arbor.NewLogger())
}

func sampleSignal() *models.Signal {
	return &models.Signal{
		ItemID:         "rss:item-1",
		Summary:        "US payrolls beat forecast at 73k",
		Sentiment:      models.SentimentPositive,
		Instrument:     "SPY",
		Action:         models.ActionBuy,
		ExpectedImpact: "+1%",
		Rationale:      "Strong labor market supports risk assets",
	}
}

func TestComposeLayout(t *testing.T) {
	service := newTestComposer(t, nil)

	body, err := service.Compose(sampleSignal(), "NYSEARCA:SPY")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	lines := strings.Split(body, "\n")
	if len(lines) != 6 {
		t.Fatalf("Expected 6 lines, got %d: %q", len(lines), body)
	}
	if lines[0] != "🚨 US payrolls beat forecast at 73k" {
		t.Errorf("Unexpected summary line %q", lines[0])
	}
	if !strings.Contains(lines[1], "Positive") || !strings.Contains(lines[1], "BUY signal") {
		t.Errorf("Unexpected verdict line %q", lines[1])
	}
	if lines[2] != "Expected impact: +1%" {
		t.Errorf("Unexpected impact line %q", lines[2])
	}
	if lines[4] != "$SPY" {
		t.Errorf("Unexpected instrument tag %q", lines[4])
	}
	if lines[5] != "#trading #markets" {
		t.Errorf("Unexpected hashtags %q", lines[5])
	}
}

func TestComposeContainsInstrumentAndAction(t *testing.T) {
	service := newTestComposer(t, nil)

	body, err := service.Compose(sampleSignal(), "")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(body, "SPY") {
		t.Errorf("Expected body to contain SPY: %q", body)
	}
	if !strings.Contains(body, "BUY") {
		t.Errorf("Expected body to contain BUY: %q", body)
	}
}

func TestComposeRationaleTruncated(t *testing.T) {
	service := newTestComposer(t, nil)

	signal := sampleSignal()
	signal.Rationale = strings.Repeat("rate cut odds rise ", 10)

	body, err := service.Compose(signal, "")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "rate cut") {
			if got := utf8.RuneCountInString(line); got != 100 {
				t.Errorf("Expected rationale cut to 100 runes, got %d", got)
			}
			if !strings.HasSuffix(line, "…") {
				t.Errorf("Expected ellipsis on truncated rationale: %q", line)
			}
			return
		}
	}
	t.Fatalf("Rationale line missing from %q", body)
}

func TestComposeDropsHashtagsWhenTight(t *testing.T) {
	service := newTestComposer(t, &common.ComposerConfig{
		TargetLength: 120,
		RationaleMax: 100,
		Hashtags:     []string{"#trading"},
	})

	signal := sampleSignal()
	signal.Rationale = strings.Repeat("x", 80)

	body, err := service.Compose(signal, "")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if strings.Contains(body, "#trading") {
		t.Errorf("Expected hashtags dropped at tight target: %q", body)
	}
	if got := utf8.RuneCountInString(body); got > 120 {
		t.Errorf("Body length %d exceeds target 120", got)
	}
}

func TestComposeSummaryTruncatedLast(t *testing.T) {
	service := newTestComposer(t, &common.ComposerConfig{TargetLength: 80, RationaleMax: 100})

	signal := sampleSignal()
	signal.Summary = strings.Repeat("breaking news ", 20)
	signal.Rationale = strings.Repeat("y", 90)

	body, err := service.Compose(signal, "")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if got := utf8.RuneCountInString(body); got > 80 {
		t.Errorf("Body length %d exceeds target 80", got)
	}
	if strings.Contains(body, "y") {
		t.Errorf("Expected rationale dropped before summary shrinks: %q", body)
	}
	if !strings.Contains(body, "…") {
		t.Errorf("Expected an ellipsis marker in %q", body)
	}
}

func TestComposeNeverExceedsTarget(t *testing.T) {
	service := newTestComposer(t, nil)

	for rationaleLen := 0; rationaleLen <= 400; rationaleLen += 37 {
		for summaryLen := 1; summaryLen <= 400; summaryLen += 53 {
			signal := sampleSignal()
			signal.Summary = strings.Repeat("s", summaryLen)
			signal.Rationale = strings.Repeat("r", rationaleLen)

			body, err := service.Compose(signal, "")
			if err != nil {
				t.Fatalf("Compose failed at summary=%d rationale=%d: %v", summaryLen, rationaleLen, err)
			}
			if got := utf8.RuneCountInString(body); got > 240 {
				t.Errorf("Body length %d exceeds 240 at summary=%d rationale=%d", got, summaryLen, rationaleLen)
			}
		}
	}
}

func TestComposeChartSymbolWinsTag(t *testing.T) {
	service := newTestComposer(t, nil)

	signal := sampleSignal()
	signal.Instrument = "CRUDE"

	body, err := service.Compose(signal, "NYSEARCA:USO")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(body, "$USO") {
		t.Errorf("Expected chart symbol code in tag: %q", body)
	}
	if strings.Contains(body, "$CRUDE") {
		t.Errorf("Expected raw instrument replaced: %q", body)
	}
}

func TestComposeNoInstrument(t *testing.T) {
	service := newTestComposer(t, nil)

	signal := sampleSignal()
	signal.Instrument = ""

	body, err := service.Compose(signal, "")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if strings.Contains(body, "$") {
		t.Errorf("Expected no instrument tag: %q", body)
	}
}

func TestComposeEmptySignal(t *testing.T) {
	service := newTestComposer(t, nil)

	if _, err := service.Compose(nil, ""); err == nil {
		t.Error("Expected error for nil signal")
	}
	if _, err := service.Compose(&models.Signal{}, ""); err == nil {
		t.Error("Expected error for empty summary")
	}
}
