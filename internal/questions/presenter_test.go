package questions

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/far-prep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresent_CorrectnessInvariant(t *testing.T) {
	p := NewPresenter(NewShuffler(rand.NewSource(7)))

	for i := 0; i < 1000; i++ {
		q := sampleQuestion(fmt.Sprintf("q%d", i), models.Session2, "Contract Types")
		q.CorrectIndex = i % models.ChoiceCount

		pq := p.Present(q, PresentOptions{ShuffleChoices: true})

		require.Equal(t, q.CorrectChoice(), pq.PresentedChoices[pq.PresentedCorrectIndex])
		require.True(t, CheckAnswer(pq, pq.PresentedCorrectIndex))
		for idx := 0; idx < models.ChoiceCount; idx++ {
			if idx != pq.PresentedCorrectIndex {
				require.False(t, CheckAnswer(pq, idx), "index %d should be wrong", idx)
			}
		}
	}
}

func TestPresent_MapsAreInverses(t *testing.T) {
	p := NewPresenter(NewShuffler(rand.NewSource(11)))
	q := sampleQuestion("inverse", models.Session1, "Ethics")

	for i := 0; i < 200; i++ {
		pq := p.Present(q, PresentOptions{ShuffleChoices: true})
		for pos := 0; pos < models.ChoiceCount; pos++ {
			assert.Equal(t, pos, pq.ReverseMap[pq.IndexMap[pos]])
			assert.Equal(t, pos, pq.IndexMap[pq.ReverseMap[pos]])
			assert.Equal(t, q.Choices[pq.IndexMap[pos]], pq.PresentedChoices[pos])
		}
	}
}

func TestPresent_NoShuffleIsIdentity(t *testing.T) {
	p := NewPresenter(nil)
	q := sampleQuestion("identity", models.Session3, "Small Business")
	q.CorrectIndex = 2

	for i := 0; i < 50; i++ {
		pq := p.Present(q, PresentOptions{ShuffleChoices: false})
		assert.Equal(t, q.Choices, pq.PresentedChoices)
		assert.Equal(t, q.Choices, pq.OriginalChoices)
		assert.Equal(t, q.CorrectIndex, pq.PresentedCorrectIndex)
		assert.Equal(t, [models.ChoiceCount]int{0, 1, 2, 3}, pq.IndexMap)
		assert.Equal(t, [models.ChoiceCount]int{0, 1, 2, 3}, pq.ReverseMap)
	}
}

func TestPresent_AllOrderingsReachable(t *testing.T) {
	p := NewPresenter(NewShuffler(rand.NewSource(2026)))
	q := sampleQuestion("uniform", models.Session4, "Competition")

	const draws = 24000
	counts := make(map[[models.ChoiceCount]int]int)
	for i := 0; i < draws; i++ {
		counts[p.Present(q, PresentOptions{ShuffleChoices: true}).IndexMap]++
	}

	require.Len(t, counts, 24, "every permutation of four choices should appear")
	expected := draws / 24
	for perm, n := range counts {
		assert.InDelta(t, expected, n, float64(expected)*0.2, "permutation %v drawn %d times", perm, n)
	}
}

func TestIndexTranslation(t *testing.T) {
	p := NewPresenter(NewShuffler(rand.NewSource(3)))
	q := sampleQuestion("translate", models.Session1, "Ethics")
	pq := p.Present(q, PresentOptions{ShuffleChoices: true})

	for presented := 0; presented < models.ChoiceCount; presented++ {
		original, err := OriginalIndex(pq, presented)
		require.NoError(t, err)
		back, err := PresentedIndex(pq, original)
		require.NoError(t, err)
		assert.Equal(t, presented, back)
	}

	_, err := OriginalIndex(pq, 4)
	assert.Error(t, err)
	_, err = PresentedIndex(pq, -1)
	assert.Error(t, err)
}

func TestPresentWithOrder(t *testing.T) {
	q := sampleQuestion("order", models.Session2, "Ethics")
	q.CorrectIndex = 1

	pq, err := PresentWithOrder(q, [models.ChoiceCount]int{2, 1, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, pq.PresentedCorrectIndex)
	assert.Equal(t, q.Choices[2], pq.PresentedChoices[0])
	assert.Equal(t, [models.ChoiceCount]int{3, 1, 0, 2}, pq.ReverseMap)

	_, err = PresentWithOrder(q, [models.ChoiceCount]int{0, 0, 1, 2})
	assert.Error(t, err)
	_, err = PresentWithOrder(q, [models.ChoiceCount]int{0, 1, 2, 4})
	assert.Error(t, err)
}
