// Package risk classifies requested medication costs into risk tiers.
package risk

import (
	"github.com/opensource-finance/caduceus/internal/domain"
)

// Classifier maps a requested cost to its risk tier. The tier carries the
// minimum qualifying credit score used as a gate before the limit policy.
type Classifier struct {
	bands []domain.RiskTierBand
}

// NewClassifier creates a classifier over ordered tier bands (descending by
// MinCost, last band is the catch-all).
func NewClassifier(bands []domain.RiskTierBand) *Classifier {
	return &Classifier{bands: bands}
}

// Classify returns the tier for a requested cost. Matching is strict
// greater-than, so a cost exactly on a band boundary falls to the band
// below it.
func (c *Classifier) Classify(cost float64) domain.RiskTier {
	for _, band := range c.bands {
		if cost > band.MinCost {
			return band.Tier
		}
	}
	// Callers validate cost > 0, so the catch-all band always matches above.
	return c.bands[len(c.bands)-1].Tier
}
