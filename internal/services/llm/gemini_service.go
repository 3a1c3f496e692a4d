// -----------------------------------------------------------------------
// Gemini Service - signal extraction completions via the Google Gemini API
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google
// Gemini API.
type GeminiService struct {
	config     *common.GeminiConfig
	logger     arbor.ILogger
	client     *genai.Client
	timeout    time.Duration
	maxTokens  int
	maxRetries int
	limiter    *rate.Limiter
}

// Compile-time assertion
var _ interfaces.LLMService = (*GeminiService)(nil)

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format. System messages are extracted separately for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance.
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for Gemini service (set via GEMINI_API_KEY, NUNTIUS_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "gemini-3-flash-preview"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	rateLimit, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", config.RateLimit, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:     config,
		logger:     logger,
		client:     client,
		timeout:    timeout,
		maxTokens:  maxTokens,
		maxRetries: 2,
		limiter:    rate.NewLimiter(rate.Every(rateLimit), 1),
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float32("temperature", config.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Gemini LLM service initialized successfully")

	return service, nil
}

// Provider returns the provider name for logging and signal records
func (s *GeminiService) Provider() string {
	return "gemini"
}

// Model returns the configured model name
func (s *GeminiService) Model() string {
	return s.config.Model
}

// Chat generates a completion for the conversation history. Failures
// surface as TransientLLMError, or RateLimitError when the API reports
// limit-exceeded.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", &models.PermanentExtractionError{Reason: "messages cannot be empty for chat completion"}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", &models.TransientLLMError{Provider: s.Provider(), Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	s.logger.Debug().
		Int("message_count", len(messages)).
		Msg("Starting Gemini chat completion")

	response, err := s.generateCompletion(timeoutCtx, messages)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Gemini chat completion failed")
		return "", err
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini chat completion completed")

	return response, nil
}

// generateCompletion makes the API call with bounded transport retries.
func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", &models.PermanentExtractionError{Reason: err.Error(), Err: err}
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.config.Temperature),
		MaxOutputTokens: int32(s.maxTokens),
	}

	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		resp, apiErr = s.client.Models.GenerateContent(ctx, s.config.Model, geminiContents, config)
		if apiErr == nil {
			break
		}

		// Rate limits go straight to the caller; the pipeline owns the
		// cooldown policy.
		if isRateLimitSignal(apiErr) {
			retryAfter := extractRetryDelay(apiErr)
			if retryAfter <= 0 {
				retryAfter = time.Minute
			}
			return "", &models.RateLimitError{Service: s.Provider(), RetryAfter: retryAfter}
		}

		if isAuthSignal(apiErr) {
			return "", &models.PermanentExtractionError{Reason: "Gemini API rejected the credentials", Err: apiErr}
		}

		if attempt == s.maxRetries {
			break
		}

		backoff := transportBackoff(attempt)
		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return "", &models.TransientLLMError{Provider: s.Provider(), Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", &models.TransientLLMError{Provider: s.Provider(), Err: apiErr}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &models.TransientLLMError{Provider: s.Provider(), Err: fmt.Errorf("empty response from Gemini API")}
	}

	responseText := resp.Text()
	if responseText == "" {
		return "", &models.TransientLLMError{Provider: s.Provider(), Err: fmt.Errorf("empty text in Gemini response")}
	}

	return responseText, nil
}
