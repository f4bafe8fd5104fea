package promo

import (
	"strings"

	"github.com/noah-isme/giftset-storefront/internal/catalog"
)

// Classifier decides whether a product belongs to an offer target.
type Classifier interface {
	Matches(p catalog.Product, target string) bool
}

// SlugClassifier matches on category slugs, then on whole dash-separated
// segments of the product slug ("eco" matches "rose-eco", not "second-skin").
// Aliases binds a target to additional product slugs.
type SlugClassifier struct {
	Aliases map[string][]string
}

// DefaultClassifier binds the testers target to the testers pack slug.
func DefaultClassifier(testersPackSlug string) SlugClassifier {
	aliases := map[string][]string{}
	if slug := strings.TrimSpace(testersPackSlug); slug != "" {
		aliases[TargetTesters] = []string{slug}
	}
	return SlugClassifier{Aliases: aliases}
}

// Matches implements Classifier.
func (c SlugClassifier) Matches(p catalog.Product, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}
	if p.InCategory(target) {
		return true
	}
	slug := strings.ToLower(p.Slug)
	if hasSegment(slug, target) {
		return true
	}
	for _, alias := range c.Aliases[target] {
		if strings.EqualFold(strings.TrimSpace(alias), slug) {
			return true
		}
	}
	return false
}

func hasSegment(slug, target string) bool {
	if slug == target {
		return true
	}
	for _, seg := range strings.Split(slug, "-") {
		if seg == target {
			return true
		}
	}
	return false
}
