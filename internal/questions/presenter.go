package questions

import (
	"fmt"

	"github.com/far-prep/backend/internal/models"
)

type PresentOptions struct {
	ShuffleChoices bool
}

// Presenter renders questions with optionally permuted choices.
type Presenter struct {
	shuffler *Shuffler
}

func NewPresenter(s *Shuffler) *Presenter {
	if s == nil {
		s = defaultShuffler
	}
	return &Presenter{shuffler: s}
}

// Present draws a permutation and derives every presented-space field from it.
func (p *Presenter) Present(q models.Question, opts PresentOptions) models.PresentedQuestion {
	var indexMap [models.ChoiceCount]int
	if opts.ShuffleChoices {
		copy(indexMap[:], p.shuffler.Perm(models.ChoiceCount))
	} else {
		for i := range indexMap {
			indexMap[i] = i
		}
	}
	return present(q, indexMap)
}

// PresentWithOrder rebuilds a presentation from a known index map, such as
// one a client echoes back. indexMap must be a permutation of [0, 4).
func PresentWithOrder(q models.Question, indexMap [models.ChoiceCount]int) (models.PresentedQuestion, error) {
	var seen [models.ChoiceCount]bool
	for _, idx := range indexMap {
		if idx < 0 || idx >= models.ChoiceCount || seen[idx] {
			return models.PresentedQuestion{}, fmt.Errorf("index map %v is not a permutation", indexMap)
		}
		seen[idx] = true
	}
	return present(q, indexMap), nil
}

// present derives the presented correct index as ReverseMap[original], so it
// cannot drift from the chosen order.
func present(q models.Question, indexMap [models.ChoiceCount]int) models.PresentedQuestion {
	var presented [models.ChoiceCount]string
	var reverseMap [models.ChoiceCount]int
	for presentedIdx, originalIdx := range indexMap {
		presented[presentedIdx] = q.Choices[originalIdx]
		reverseMap[originalIdx] = presentedIdx
	}

	return models.PresentedQuestion{
		ID:                    q.ID,
		Prompt:                q.Prompt,
		PresentedChoices:      presented,
		PresentedCorrectIndex: reverseMap[q.CorrectIndex],
		OriginalChoices:       q.Choices,
		OriginalCorrectIndex:  q.CorrectIndex,
		IndexMap:              indexMap,
		ReverseMap:            reverseMap,
		Explanation:           q.Explanation,
		Session:               q.Session,
		Topic:                 q.Topic,
		Tags:                  q.Tags,
		FarRefs:               q.FarRefs,
		Difficulty:            q.Difficulty,
		Source:                q.Source,
	}
}

// PresentAll presents every question in order.
func (p *Presenter) PresentAll(qs []models.Question, opts PresentOptions) []models.PresentedQuestion {
	out := make([]models.PresentedQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, p.Present(q, opts))
	}
	return out
}

// CheckAnswer is the correctness oracle. It compares presented-space indices only.
func CheckAnswer(pq models.PresentedQuestion, selectedPresentedIndex int) bool {
	return selectedPresentedIndex == pq.PresentedCorrectIndex
}

// OriginalIndex translates an on-screen index to the stored choice index.
func OriginalIndex(pq models.PresentedQuestion, presentedIndex int) (int, error) {
	if presentedIndex < 0 || presentedIndex >= models.ChoiceCount {
		return 0, fmt.Errorf("presented index %d out of range", presentedIndex)
	}
	return pq.IndexMap[presentedIndex], nil
}

// PresentedIndex translates a stored choice index to its on-screen position.
func PresentedIndex(pq models.PresentedQuestion, originalIndex int) (int, error) {
	if originalIndex < 0 || originalIndex >= models.ChoiceCount {
		return 0, fmt.Errorf("original index %d out of range", originalIndex)
	}
	return pq.ReverseMap[originalIndex], nil
}
