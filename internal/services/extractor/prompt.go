package extractor

import (
	"fmt"

	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

const systemPrompt = `You are a financial news analyst. Given a news headline, analyze it and provide:
- A one-sentence summary
- The overall sentiment (POSITIVE, NEGATIVE, or NEUTRAL)
- The most relevant financial instrument (provide the actual ticker symbol, e.g. AAPL, SPY, GLD, not just 'stock' or 'equity'; leave empty if none applies)
- A suggested action (BUY, SELL, HOLD, or NONE)
- A brief rationale for your suggestion (a single concise sentence, max 100 characters)
- The expected price impact as a percentage (e.g. +2%, -1%, 0%)

Respond with STRICT JSON only, no prose, using exactly these keys:
summary, sentiment, instrument, action, rationale, expected_impact.`

// BuildMessages constructs the extraction conversation for one item.
func BuildMessages(item models.RawItem) []interfaces.Message {
	return []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Headline: %q", item.Text())},
	}
}
