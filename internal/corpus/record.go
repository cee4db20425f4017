package corpus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/far-prep/backend/internal/models"
)

const (
	defaultSession = models.Session1
	defaultTopic   = "General"
	defaultTag     = "Representative Practice"
	defaultFarRef  = "FAR Part 1"
)

// questionNamespace seeds the name-based ids of records that arrive without one.
var questionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://far-prep/questions"))

// ValidationError collects the reasons records were rejected.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// LoadResult is the outcome of decoding a question file. Invalid records are
// reported, never fatal.
type LoadResult struct {
	Questions []models.Question
	Total     int
	Invalid   *ValidationError
}

// InvalidCount is the number of rejected records.
func (r *LoadResult) InvalidCount() int {
	if r.Invalid == nil {
		return 0
	}
	return len(r.Invalid.Errors)
}

// record is the loose wire shape accepted on import. Both camelCase and
// snake_case keys are accepted; choices and tags may be JSON-encoded strings.
type record struct {
	ID           string          `json:"id"`
	Prompt       string          `json:"prompt"`
	Choices      json.RawMessage `json:"choices"`
	CorrectIndex *int            `json:"correctIndex"`
	CorrectSnake *int            `json:"correct_index"`
	Explanation  string          `json:"explanation"`
	Session      string          `json:"session"`
	Topic        string          `json:"topic"`
	Tags         json.RawMessage `json:"tags"`
	FarRefs      json.RawMessage `json:"farRefs"`
	FarRefsSnake json.RawMessage `json:"far_refs"`
	Difficulty   *int            `json:"difficulty"`
	Source       string          `json:"source"`
}

// stringList accepts either a JSON array of strings or a string holding one.
func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("expected array of strings")
	}
	if strings.TrimSpace(encoded) == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil, fmt.Errorf("expected array of strings")
	}
	return list, nil
}

func (r record) toDraft() (draft, error) {
	choices, err := stringList(r.Choices)
	if err != nil {
		return draft{}, fmt.Errorf("choices: %w", err)
	}
	tags, err := stringList(r.Tags)
	if err != nil {
		return draft{}, fmt.Errorf("tags: %w", err)
	}
	refsRaw := r.FarRefs
	if len(refsRaw) == 0 {
		refsRaw = r.FarRefsSnake
	}
	refs, err := stringList(refsRaw)
	if err != nil {
		return draft{}, fmt.Errorf("farRefs: %w", err)
	}
	correct := r.CorrectIndex
	if correct == nil {
		correct = r.CorrectSnake
	}
	return draft{
		ID:           r.ID,
		Prompt:       r.Prompt,
		Choices:      choices,
		CorrectIndex: correct,
		Explanation:  r.Explanation,
		Session:      r.Session,
		Topic:        r.Topic,
		Tags:         tags,
		FarRefs:      refs,
		Difficulty:   r.Difficulty,
		Source:       r.Source,
	}, nil
}

// draft is a decoded but unvalidated question from any source format.
type draft struct {
	ID           string
	Prompt       string
	Choices      []string
	CorrectIndex *int
	Explanation  string
	Session      string
	Topic        string
	Tags         []string
	FarRefs      []string
	Difficulty   *int
	Source       string
}

// validate applies defaults and returns the question or the reasons it was
// rejected.
func (d draft) validate() (models.Question, []string) {
	var reasons []string

	prompt := strings.TrimSpace(d.Prompt)
	if prompt == "" {
		reasons = append(reasons, "missing prompt")
	}

	var choices [models.ChoiceCount]string
	if len(d.Choices) != models.ChoiceCount {
		reasons = append(reasons, fmt.Sprintf("expected %d choices, got %d", models.ChoiceCount, len(d.Choices)))
	} else {
		for i, c := range d.Choices {
			c = strings.TrimSpace(c)
			if c == "" {
				reasons = append(reasons, fmt.Sprintf("choice %d is empty", i))
			}
			choices[i] = c
		}
	}

	correct := 0
	switch {
	case d.CorrectIndex == nil:
		reasons = append(reasons, "missing correctIndex")
	case *d.CorrectIndex < 0 || *d.CorrectIndex >= models.ChoiceCount:
		reasons = append(reasons, fmt.Sprintf("correctIndex %d out of range", *d.CorrectIndex))
	default:
		correct = *d.CorrectIndex
	}

	session := models.Session(strings.TrimSpace(d.Session))
	if session == "" {
		session = defaultSession
	} else if !models.ValidSessions[session] {
		reasons = append(reasons, fmt.Sprintf("unknown session %q", session))
	}

	topic := strings.TrimSpace(d.Topic)
	if topic == "" {
		topic = defaultTopic
	}

	difficulty := 1
	if d.Difficulty != nil {
		if *d.Difficulty < 1 {
			reasons = append(reasons, fmt.Sprintf("difficulty %d below 1", *d.Difficulty))
		} else {
			difficulty = *d.Difficulty
		}
	}

	if len(reasons) > 0 {
		return models.Question{}, reasons
	}

	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = uuid.NewSHA1(questionNamespace, []byte(promptKey(prompt))).String()
	}
	tags := d.Tags
	if len(tags) == 0 {
		tags = []string{defaultTag}
	}
	refs := d.FarRefs
	if len(refs) == 0 {
		refs = []string{defaultFarRef}
	}

	return models.Question{
		ID:           id,
		Prompt:       prompt,
		Choices:      choices,
		CorrectIndex: correct,
		Explanation:  strings.TrimSpace(d.Explanation),
		Session:      session,
		Topic:        topic,
		Tags:         tags,
		FarRefs:      refs,
		Difficulty:   difficulty,
		Source:       strings.TrimSpace(d.Source),
	}, nil
}

// collect validates drafts in order. broken holds records that could not be
// decoded at all; label names a record in error messages.
func collect(drafts []draft, broken map[int]string, label func(i int) string) *LoadResult {
	res := &LoadResult{Total: len(drafts), Questions: make([]models.Question, 0, len(drafts))}
	verr := &ValidationError{}
	for i, d := range drafts {
		if reason, bad := broken[i]; bad {
			verr.add("%s: %s", label(i), reason)
			continue
		}
		q, reasons := d.validate()
		if len(reasons) > 0 {
			verr.add("%s: %s", label(i), strings.Join(reasons, ", "))
			continue
		}
		res.Questions = append(res.Questions, q)
	}
	if len(verr.Errors) > 0 {
		res.Invalid = verr
	}
	return res
}
