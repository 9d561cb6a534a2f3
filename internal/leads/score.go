package leads

import "github.com/sells-group/leadgen-mx/internal/model"

// Scoring weights. Every candidate starts at the base; each populated
// contact field adds its weight, capped at 1.0.
const (
	scoreBase     = 0.50
	scorePhone    = 0.30
	scoreEmail    = 0.20
	scoreWebsite  = 0.15
	scoreAddress  = 0.10
	scoreCategory = 0.05
	scoreCap      = 1.00
)

// Score computes the confidence score for a candidate from field
// completeness alone.
func Score(c *model.CandidateLead) float64 {
	score := scoreBase
	if c.Phone != "" {
		score += scorePhone
	}
	if c.Email != "" {
		score += scoreEmail
	}
	if c.Website != "" {
		score += scoreWebsite
	}
	if c.Address != "" {
		score += scoreAddress
	}
	if c.Category != "" {
		score += scoreCategory
	}
	if score > scoreCap {
		score = scoreCap
	}
	return score
}
