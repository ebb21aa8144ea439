package categorizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fjacquet/receiptvault/internal/logging"
)

// AIClient suggests a category from the allowed set for free-form receipt
// text. Implementations talk to an external model and may fail; callers fall
// back to keyword rules or leave the category empty.
type AIClient interface {
	Suggest(ctx context.Context, text string, allowed []string) (string, error)
}

// GeminiClient calls the Google Gemini API for category suggestions.
type GeminiClient struct {
	apiKey  string
	model   string
	timeout time.Duration
	logger  logging.Logger
}

// NewGeminiClient creates a client for the given model, e.g.
// "gemini-1.5-flash".
func NewGeminiClient(apiKey, model string, timeout time.Duration, logger logging.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Suggest asks the model to pick one category from the allowed set. Any
// answer outside the set is rejected.
func (c *GeminiClient) Suggest(ctx context.Context, text string, allowed []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	prompt := fmt.Sprintf(
		"Classify this receipt into exactly one of these categories: %s.\n"+
			"Answer with the category name only, nothing else.\n\nReceipt: %s",
		strings.Join(allowed, ", "), text)

	resp, err := client.GenerativeModel(c.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	answer := firstText(resp)
	for _, category := range allowed {
		if strings.EqualFold(strings.TrimSpace(answer), category) {
			c.logger.Debug("receipt categorized by gemini",
				logging.F("category", category))
			return category, nil
		}
	}
	return "", fmt.Errorf("gemini returned unknown category '%s'", strings.TrimSpace(answer))
}

func firstText(resp *genai.GenerateContentResponse) string {
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				return string(text)
			}
		}
	}
	return ""
}
