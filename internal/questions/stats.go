package questions

import (
	"math"
	"time"

	"github.com/far-prep/backend/internal/models"
)

const (
	weakTopicMinAttempts = 3
	weakTopicLimit       = 5
)

// ComputeStats summarises progress across the corpus. Accuracy is rounded to
// two decimals; weak topics need at least three attempts to be listed.
func ComputeStats(corpus []models.Question, snap Snapshot, now time.Time) models.StatsResponse {
	var correct, incorrect, mastered, due int
	for _, q := range corpus {
		e, ok := snap[q.ID]
		if !ok {
			due++
			continue
		}
		correct += e.CorrectCount
		incorrect += e.IncorrectCount
		if IsMastered(e.Proficiency) {
			mastered++
		}
		if e.IsDue(now) {
			due++
		}
	}

	total := correct + incorrect
	accuracy := 0.0
	if total > 0 {
		accuracy = roundAccuracy(float64(correct) / float64(total))
	}

	weak := make([]models.TopicStat, 0, weakTopicLimit)
	for _, t := range WeakTopics(corpus, snap) {
		if t.Total < weakTopicMinAttempts {
			continue
		}
		weak = append(weak, t)
		if len(weak) == weakTopicLimit {
			break
		}
	}

	return models.StatsResponse{
		TotalQuestions: len(corpus),
		MasteredCount:  mastered,
		Accuracy:       accuracy,
		TotalAttempts:  total,
		DueNow:         due,
		WeakTopics:     weak,
	}
}

func roundAccuracy(v float64) float64 {
	return math.Round(v*100) / 100
}
