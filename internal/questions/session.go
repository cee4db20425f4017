package questions

import (
	"github.com/far-prep/backend/internal/models"
)

// DefaultBatchSize is how many questions a study session shows per batch.
const DefaultBatchSize = 10

// BatchSummary is reported when the last question of a batch is answered.
type BatchSummary struct {
	Answered int
	Correct  int
	Missed   int
}

// StudySession walks a queue in batches. A missed question comes back two or
// three places later in the same batch, keeping its choice order; the
// question it pushes out of the batch goes to the back of the queue.
type StudySession struct {
	presenter      *Presenter
	shuffler       *Shuffler
	batchSize      int
	shuffleChoices bool

	remaining []models.Question
	byID      map[string]models.Question
	batch     []models.PresentedQuestion
	index     int

	missed        map[string]bool
	batchAnswered int
	batchCorrect  int

	streak     int
	bestStreak int
}

func newStudySession(queue []models.Question, presenter *Presenter, shuffler *Shuffler, batchSize int, shuffleChoices bool) *StudySession {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if shuffler == nil {
		shuffler = defaultShuffler
	}
	byID := make(map[string]models.Question, len(queue))
	for _, q := range queue {
		byID[q.ID] = q
	}
	return &StudySession{
		presenter:      presenter,
		shuffler:       shuffler,
		batchSize:      batchSize,
		shuffleChoices: shuffleChoices,
		remaining:      append([]models.Question(nil), queue...),
		byID:           byID,
	}
}

// Next returns the question to show, starting a new batch when the current
// one is finished. ok is false once the queue is exhausted.
func (s *StudySession) Next() (models.PresentedQuestion, bool) {
	if s.index >= len(s.batch) {
		if len(s.remaining) == 0 {
			return models.PresentedQuestion{}, false
		}
		s.startBatch()
	}
	return s.batch[s.index], true
}

func (s *StudySession) startBatch() {
	n := s.batchSize
	if n > len(s.remaining) {
		n = len(s.remaining)
	}
	s.batch = s.presenter.PresentAll(s.remaining[:n], PresentOptions{ShuffleChoices: s.shuffleChoices})
	s.remaining = s.remaining[n:]
	s.index = 0
	s.missed = make(map[string]bool)
	s.batchAnswered = 0
	s.batchCorrect = 0
}

// Answered records the outcome for the current question and advances. When
// that finishes the batch, the batch summary is returned with done set.
func (s *StudySession) Answered(wasCorrect bool) (summary BatchSummary, done bool) {
	if s.index >= len(s.batch) {
		return BatchSummary{}, false
	}
	current := s.batch[s.index]

	s.batchAnswered++
	if wasCorrect {
		s.batchCorrect++
		s.streak++
		if s.streak > s.bestStreak {
			s.bestStreak = s.streak
		}
	} else {
		s.streak = 0
		s.missed[current.ID] = true
		s.requeue(current)
	}

	s.index++
	if s.index < len(s.batch) {
		return BatchSummary{}, false
	}
	return BatchSummary{
		Answered: s.batchAnswered,
		Correct:  s.batchCorrect,
		Missed:   len(s.missed),
	}, true
}

// requeue shows pq again later in the batch without growing it.
func (s *StudySession) requeue(pq models.PresentedQuestion) {
	size := len(s.batch)
	if size <= 1 {
		return
	}
	offset := 2 + s.shuffler.Intn(2)
	at := s.index + offset
	if at > size-1 {
		at = size - 1
	}
	if at <= s.index {
		return
	}

	pushed := s.batch[size-1]
	copy(s.batch[at+1:], s.batch[at:size-1])
	s.batch[at] = pq

	if pushed.ID != pq.ID {
		if q, ok := s.byID[pushed.ID]; ok {
			s.remaining = append(s.remaining, q)
		}
	}
}

func (s *StudySession) Streak() int {
	return s.streak
}

func (s *StudySession) BestStreak() int {
	return s.bestStreak
}

// Position is the 1-based place of the current question in its batch and
// the batch length.
func (s *StudySession) Position() (int, int) {
	return s.index + 1, len(s.batch)
}

// Remaining counts questions not yet pulled into a batch.
func (s *StudySession) Remaining() int {
	return len(s.remaining)
}
