package questions

import (
	"math"
	"time"
)

const (
	initialProficiency = 0.20
	correctDelta       = 0.15
	incorrectDelta     = -0.20
	masteredThreshold  = 0.85
)

// InitialProficiency is the score given to every newly created progress entry.
func InitialProficiency() float64 {
	return initialProficiency
}

// UpdateProficiency returns the score after one answer. Misses cost more than
// hits earn, so repeated mistakes come back sooner.
func UpdateProficiency(current float64, wasCorrect bool) float64 {
	delta := incorrectDelta
	if wasCorrect {
		delta = correctDelta
	}
	next := clampScore(current + delta)
	// Keep stored scores free of accumulated float noise.
	return math.Round(next*1e6) / 1e6
}

// IsMastered reports whether a score has reached the mastery threshold.
func IsMastered(score float64) bool {
	return score >= masteredThreshold
}

// NextDueOffset maps a score to the delay before the question is due again.
//
//	score < 0.25  → 10 minutes
//	score < 0.40  → 1 hour
//	score < 0.55  → 4 hours
//	score < 0.70  → 1 day
//	score < 0.85  → 3 days
//	otherwise     → 7 days
func NextDueOffset(score float64) time.Duration {
	switch {
	case score < 0.25:
		return 10 * time.Minute
	case score < 0.40:
		return time.Hour
	case score < 0.55:
		return 4 * time.Hour
	case score < 0.70:
		return 24 * time.Hour
	case score < masteredThreshold:
		return 3 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// NextDueAt returns the absolute time a question with score becomes due.
func NextDueAt(score float64, now time.Time) time.Time {
	return now.Add(NextDueOffset(score))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
