package categorizer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryRule maps a category name to the keywords that select it.
// Rules are evaluated in file order, so more specific categories should come
// first.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type rulesFile struct {
	Categories []CategoryRule `yaml:"categories"`
}

// LoadRules reads category rules from a YAML file. A missing file yields the
// built-in defaults.
func LoadRules(path string) ([]CategoryRule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}
	if len(file.Categories) == 0 {
		return DefaultRules(), nil
	}
	return file.Categories, nil
}

// DefaultRules covers the merchants a traveling user hits most often.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Name: "Groceries", Keywords: []string{"COOP", "MIGROS", "ALDI", "LIDL", "DENNER", "CARREFOUR", "SUPERMARKET", "SUPERMARCHE"}},
		{Name: "Dining", Keywords: []string{"RESTAURANT", "PIZZERIA", "CAFE", "SUSHI", "BISTRO", "BRASSERIE", "KEBAB"}},
		{Name: "Transport", Keywords: []string{"SBB", "CFF", "TAXI", "UBER", "PARKING", "TANKSTELLE", "PETROL", "GARE"}},
		{Name: "Lodging", Keywords: []string{"HOTEL", "HOSTEL", "AIRBNB", "AUBERGE"}},
		{Name: "Health", Keywords: []string{"PHARMACIE", "APOTHEKE", "PHARMACY", "CLINIQUE"}},
		{Name: "Shopping", Keywords: []string{"MANOR", "GALAXUS", "DIGITEC", "FNAC", "IKEA"}},
	}
}
