package models

import "time"

// ProgressEntry is the mutable learning state for one question.
// A nil NextDueAt means the question is due immediately.
type ProgressEntry struct {
	QuestionID     string     `json:"question_id" db:"question_id"`
	Proficiency    float64    `json:"proficiency" db:"proficiency"`
	CorrectCount   int        `json:"correct_count" db:"correct_count"`
	IncorrectCount int        `json:"incorrect_count" db:"incorrect_count"`
	LastAnsweredAt *time.Time `json:"last_answered_at,omitempty" db:"last_answered_at"`
	NextDueAt      *time.Time `json:"next_due_at,omitempty" db:"next_due_at"`
	IsBookmarked   bool       `json:"is_bookmarked" db:"is_bookmarked"`
	BookmarkedAt   *time.Time `json:"bookmarked_at,omitempty" db:"bookmarked_at"`
}

// IsDue reports whether the entry should be shown at now.
func (p ProgressEntry) IsDue(now time.Time) bool {
	return p.NextDueAt == nil || !p.NextDueAt.After(now)
}

// Attempts is the total number of recorded answers.
func (p ProgressEntry) Attempts() int {
	return p.CorrectCount + p.IncorrectCount
}

// AttemptEntry is an append-only audit record of one answer.
type AttemptEntry struct {
	ID            int64     `json:"id" db:"id"`
	QuestionID    string    `json:"question_id" db:"question_id"`
	Topic         string    `json:"topic" db:"topic"`
	Session       Session   `json:"session" db:"session"`
	SelectedIndex int       `json:"selected_index" db:"selected_index"`
	WasCorrect    bool      `json:"was_correct" db:"was_correct"`
	Mode          Mode      `json:"mode" db:"mode"`
	At            time.Time `json:"at" db:"answered_at"`
}

// ── Stats Types ───────────────────────────────────────

type TopicStat struct {
	Topic    string  `json:"topic"`
	Accuracy float64 `json:"accuracy"`
	Total    int     `json:"total"`
}

type StatsResponse struct {
	TotalQuestions int         `json:"total_questions"`
	MasteredCount  int         `json:"mastered_count"`
	Accuracy       float64     `json:"accuracy"`
	TotalAttempts  int         `json:"total_attempts"`
	DueNow         int         `json:"due_now"`
	WeakTopics     []TopicStat `json:"weak_topics"`
}
