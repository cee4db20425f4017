package questions

import (
	"fmt"
	"time"

	"github.com/far-prep/backend/internal/models"
)

func sampleQuestion(id string, session models.Session, topic string) models.Question {
	return models.Question{
		ID:     id,
		Prompt: fmt.Sprintf("Under the FAR, which statement about %s (%s) is accurate?", topic, id),
		Choices: [models.ChoiceCount]string{
			id + " choice alpha",
			id + " choice bravo",
			id + " choice charlie",
			id + " choice delta",
		},
		CorrectIndex: len(id) % models.ChoiceCount,
		Explanation:  "The correct choice follows the cited FAR part because the rule applies directly.",
		Session:      session,
		Topic:        topic,
		Tags:         []string{"Representative Practice"},
		FarRefs:      []string{"FAR Part 1"},
		Difficulty:   1,
	}
}

// sampleCorpus builds n questions per topic, all in Session 1.
func sampleCorpus(topics []string, n int) []models.Question {
	var out []models.Question
	for _, topic := range topics {
		for i := 0; i < n; i++ {
			out = append(out, sampleQuestion(fmt.Sprintf("%s-%d", topic, i), models.Session1, topic))
		}
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func ids(qs []models.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}
