// -----------------------------------------------------------------------
// Extractor Service - turns one raw item into a tagged signal verdict
// via the configured LLM provider
// -----------------------------------------------------------------------

package extractor

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Service extracts trading signals from raw news items.
type Service struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewService creates a new extractor service.
func NewService(llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		llm:    llm,
		logger: logger,
	}
}

// Extract sends the item to the model and parses the response. Transport
// failures are returned as the LLM layer's typed errors; parse failures
// are encoded in the ParseResult, not the error.
func (s *Service) Extract(ctx context.Context, item models.RawItem) (models.ParseResult, error) {
	response, err := s.llm.Chat(ctx, BuildMessages(item))
	if err != nil {
		return models.ParseResult{}, err
	}

	result := ParseResponse(item.ID, response)

	switch result.Outcome {
	case models.ParseSuccess:
		result.Signal.Model = s.llm.Model()
		s.logger.Debug().
			Str("item_id", item.ID).
			Str("instrument", result.Signal.Instrument).
			Str("action", string(result.Signal.Action)).
			Str("sentiment", string(result.Signal.Sentiment)).
			Msg("Signal extracted")
	case models.ParseMalformed:
		s.logger.Warn().
			Str("item_id", item.ID).
			Str("reason", result.Reason).
			Msg("Model response malformed")
	case models.ParseEmpty:
		s.logger.Debug().
			Str("item_id", item.ID).
			Str("reason", result.Reason).
			Msg("Model returned no signal")
	}

	return result, nil
}
