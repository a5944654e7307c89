package scoring

import "github.com/opensource-finance/redflag/internal/domain"

// Band cutoffs: LOW below ModerateFrom, HIGH from HighFrom.
const (
	ModerateFrom = 25
	HighFrom     = 50
)

// Clamp limits score to [domain.MinScore, domain.MaxScore].
func Clamp(score int) int {
	if score < domain.MinScore {
		return domain.MinScore
	}
	if score > domain.MaxScore {
		return domain.MaxScore
	}
	return score
}

// Classify maps a score to its band. Out-of-range scores are clamped first.
func Classify(score int) domain.Band {
	score = Clamp(score)
	switch {
	case score >= HighFrom:
		return domain.BandHigh
	case score >= ModerateFrom:
		return domain.BandModerate
	default:
		return domain.BandLow
	}
}
