package categorizer

import (
	"context"
	"strings"

	"fjacquet/receiptvault/internal/logging"
)

// KeywordStrategy categorizes receipt text by case-insensitive keyword
// matching against the loaded rules.
type KeywordStrategy struct {
	rules  []CategoryRule
	logger logging.Logger
}

// NewKeywordStrategy creates a keyword strategy over the given rules.
func NewKeywordStrategy(rules []CategoryRule, logger logging.Logger) *KeywordStrategy {
	return &KeywordStrategy{rules: rules, logger: logger}
}

// Name identifies this strategy in logs.
func (s *KeywordStrategy) Name() string {
	return "Keyword"
}

// Categorize returns the first category whose keyword appears in the text.
func (s *KeywordStrategy) Categorize(ctx context.Context, text string) (string, bool, error) {
	if strings.TrimSpace(text) == "" {
		return "", false, nil
	}
	upper := strings.ToUpper(text)

	for _, rule := range s.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(upper, strings.ToUpper(keyword)) {
				s.logger.Debug("receipt categorized by keyword",
					logging.F("strategy", s.Name()),
					logging.F("keyword", keyword),
					logging.F("category", rule.Name))
				return rule.Name, true, nil
			}
		}
	}
	return "", false, nil
}
