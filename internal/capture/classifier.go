package capture

import (
	"sort"
	"strings"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// Classifier assigns topic categories to user prompts by keyword matching.
// Assistant replies are never classified directly; they inherit the
// categories of the prompt that caused them during pairing.
type Classifier struct {
	primary   map[string][]string
	secondary map[string][]string
	fallback  string
}

func NewClassifier() *Classifier {
	return &Classifier{
		primary:   config.PrimaryKeywords,
		secondary: config.SecondaryKeywords,
		fallback:  config.DefaultPrimaryCategory,
	}
}

// Classify tags the content. Every result carries at least one primary
// category; the fallback placeholder marks content no keyword matched.
func (c *Classifier) Classify(content string) domain.Categories {
	text := strings.ToLower(content)

	out := domain.Categories{}
	for category, keywords := range c.primary {
		if matchesAny(text, keywords) {
			out.Primary = append(out.Primary, category)
		}
	}
	for category, keywords := range c.secondary {
		if matchesAny(text, keywords) {
			out.Secondary = append(out.Secondary, category)
		}
	}

	if len(out.Primary) == 0 {
		out.Primary = []string{c.fallback}
	}
	sortCategories(out)
	return out
}

// IsPlaceholder reports whether the categories are still the unclassified
// default, meaning a repair pass may re-run classification.
func (c *Classifier) IsPlaceholder(cats domain.Categories) bool {
	return len(cats.Primary) == 1 && cats.Primary[0] == c.fallback && len(cats.Secondary) == 0
}

// sortCategories keeps output deterministic across map iteration order.
func sortCategories(cats domain.Categories) {
	sort.Strings(cats.Primary)
	sort.Strings(cats.Secondary)
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
