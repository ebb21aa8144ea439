// Package categorizer assigns spending categories to captured receipts.
// Keyword rules run first; an optional AI client handles whatever the rules
// miss. Categorization is advisory and never blocks a capture.
package categorizer

import (
	"context"

	"fjacquet/receiptvault/internal/logging"
)

// Categorizer chains the keyword strategy with an optional AI fallback.
type Categorizer struct {
	keyword  *KeywordStrategy
	ai       AIClient
	fallback string
	allowed  []string
	logger   logging.Logger
}

// New builds a categorizer from rules. The AI client may be nil; fallback is
// the category used when nothing matches, and may be empty.
func New(rules []CategoryRule, ai AIClient, fallback string, logger logging.Logger) *Categorizer {
	allowed := make([]string, 0, len(rules))
	for _, rule := range rules {
		allowed = append(allowed, rule.Name)
	}
	return &Categorizer{
		keyword:  NewKeywordStrategy(rules, logger),
		ai:       ai,
		fallback: fallback,
		allowed:  allowed,
		logger:   logger,
	}
}

// Categorize returns the best category for the text. It only errors when
// every strategy failed and no fallback is configured.
func (c *Categorizer) Categorize(ctx context.Context, text string) (string, error) {
	category, found, err := c.keyword.Categorize(ctx, text)
	if err == nil && found {
		return category, nil
	}

	if c.ai != nil {
		category, err := c.ai.Suggest(ctx, text, c.allowed)
		if err == nil {
			return category, nil
		}
		c.logger.Warn("ai categorization failed",
			logging.F("error", err.Error()))
	}

	return c.fallback, nil
}
