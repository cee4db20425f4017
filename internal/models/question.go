package models

import "time"

// ChoiceCount is the fixed number of answer choices on every question.
const ChoiceCount = 4

type Session string

const (
	Session1 Session = "Session 1"
	Session2 Session = "Session 2"
	Session3 Session = "Session 3"
	Session4 Session = "Session 4"
)

var ValidSessions = map[Session]bool{
	Session1: true,
	Session2: true,
	Session3: true,
	Session4: true,
}

// AllSessions lists sessions in display order.
var AllSessions = []Session{Session1, Session2, Session3, Session4}

type Mode string

const (
	ModeLearn     Mode = "learn"
	ModeWeakAreas Mode = "weak-areas"
	ModeReview    Mode = "review"
	ModeBookmarks Mode = "bookmarks"
	ModeExam      Mode = "exam"
	ModeTopics    Mode = "topics"
)

var ValidModes = map[Mode]bool{
	ModeLearn:     true,
	ModeWeakAreas: true,
	ModeReview:    true,
	ModeBookmarks: true,
	ModeExam:      true,
	ModeTopics:    true,
}

// ── Core Structs ───────────────────────────────────────

// Question is immutable once loaded into the corpus.
type Question struct {
	ID           string              `json:"id"`
	Prompt       string              `json:"prompt"`
	Choices      [ChoiceCount]string `json:"choices"`
	CorrectIndex int                 `json:"correct_index"`
	Explanation  string              `json:"explanation"`
	Session      Session             `json:"session"`
	Topic        string              `json:"topic"`
	Tags         []string            `json:"tags,omitempty"`
	FarRefs      []string            `json:"far_refs,omitempty"`
	Difficulty   int                 `json:"difficulty"`
	Source       string              `json:"source,omitempty"`
}

// CorrectChoice returns the text of the stored correct choice.
func (q Question) CorrectChoice() string {
	return q.Choices[q.CorrectIndex]
}

// PresentedQuestion is a per-render view of a Question with its choices
// permuted. IndexMap[presented] = original, ReverseMap[original] = presented.
type PresentedQuestion struct {
	ID                    string              `json:"id"`
	Prompt                string              `json:"prompt"`
	PresentedChoices      [ChoiceCount]string `json:"presented_choices"`
	PresentedCorrectIndex int                 `json:"presented_correct_index"`
	OriginalChoices       [ChoiceCount]string `json:"original_choices"`
	OriginalCorrectIndex  int                 `json:"original_correct_index"`
	IndexMap              [ChoiceCount]int    `json:"index_map"`
	ReverseMap            [ChoiceCount]int    `json:"reverse_map"`
	Explanation           string              `json:"explanation"`
	Session               Session             `json:"session"`
	Topic                 string              `json:"topic"`
	Tags                  []string            `json:"tags,omitempty"`
	FarRefs               []string            `json:"far_refs,omitempty"`
	Difficulty            int                 `json:"difficulty"`
	Source                string              `json:"source,omitempty"`
}

// ── Request Types ─────────────────────────────────────

// AnswerRequest carries a selection in original choice space, or in
// presented space when IndexMap echoes the order the question was shown in.
type AnswerRequest struct {
	QuestionID    string            `json:"question_id"`
	SelectedIndex *int              `json:"selected_index"`
	IndexMap      *[ChoiceCount]int `json:"index_map,omitempty"`
	Mode          Mode              `json:"mode,omitempty"`
}

type BookmarkRequest struct {
	QuestionID string `json:"question_id"`
}

type ExamRequest struct {
	Count          int    `json:"count"`
	Preset         string `json:"preset"`
	ShuffleChoices *bool  `json:"shuffle_choices,omitempty"`
}

// ── Response Types ────────────────────────────────────

type AnswerResponse struct {
	WasCorrect            bool      `json:"was_correct"`
	CorrectIndex          int       `json:"correct_index"`
	PresentedCorrectIndex *int      `json:"presented_correct_index,omitempty"`
	Explanation           string    `json:"explanation"`
	NewProficiency        float64   `json:"new_proficiency"`
	NextDueAt             time.Time `json:"next_due_at"`
	Mastered              bool      `json:"mastered"`
}

type BookmarkResponse struct {
	QuestionID   string `json:"question_id"`
	IsBookmarked bool   `json:"is_bookmarked"`
}

// CatalogResponse lists what the corpus covers, for building filters.
type CatalogResponse struct {
	TotalQuestions int                  `json:"total_questions"`
	Sessions       []Session            `json:"sessions"`
	Topics         map[Session][]string `json:"topics"`
}

type ImportResult struct {
	TotalInPayload int      `json:"total_in_payload"`
	Imported       int      `json:"imported"`
	Skipped        int      `json:"skipped"`
	Invalid        int      `json:"invalid"`
	Errors         []string `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
