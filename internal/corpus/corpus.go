package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/far-prep/backend/internal/models"
)

// dedupePrefix is how many runes of a prompt identify a duplicate question.
const dedupePrefix = 100

// Corpus is the ordered, id-indexed question set. Questions are immutable
// once added; only Merge grows the set.
type Corpus struct {
	mu       sync.RWMutex
	order    []models.Question
	byID     map[string]int
	prefixes map[string]struct{}
}

// MergeResult counts what a Merge did with each incoming question.
type MergeResult struct {
	Added      int
	Duplicates int
}

func New() *Corpus {
	return &Corpus{
		byID:     make(map[string]int),
		prefixes: make(map[string]struct{}),
	}
}

// FromQuestions builds a corpus, silently dropping duplicates.
func FromQuestions(qs []models.Question) *Corpus {
	c := New()
	c.Merge(qs)
	return c
}

// Load reads a question file and returns the corpus along with the decode
// report, so callers can log rejected records.
func Load(path string) (*Corpus, *LoadResult, error) {
	res, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return FromQuestions(res.Questions), res, nil
}

func promptKey(prompt string) string {
	r := []rune(prompt)
	if len(r) > dedupePrefix {
		r = r[:dedupePrefix]
	}
	return string(r)
}

// Merge appends questions whose id and prompt prefix are both new.
func (c *Corpus) Merge(qs []models.Question) MergeResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res MergeResult
	for _, q := range qs {
		key := promptKey(q.Prompt)
		if _, dup := c.byID[q.ID]; dup {
			res.Duplicates++
			continue
		}
		if _, dup := c.prefixes[key]; dup {
			res.Duplicates++
			continue
		}
		c.byID[q.ID] = len(c.order)
		c.prefixes[key] = struct{}{}
		c.order = append(c.order, q)
		res.Added++
	}
	return res
}

// All returns a copy of the questions in insertion order.
func (c *Corpus) All() []models.Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Question, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Corpus) Get(id string) (models.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Question{}, false
	}
	return c.order[i], true
}

func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Sessions lists the sessions that have at least one question, in display order.
func (c *Corpus) Sessions() []models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[models.Session]bool)
	for _, q := range c.order {
		seen[q.Session] = true
	}
	out := []models.Session{}
	for _, s := range models.AllSessions {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out
}

// Topics lists distinct topics sorted by name. A non-empty session limits
// the listing to that session.
func (c *Corpus) Topics(session models.Session) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	out := []string{}
	for _, q := range c.order {
		if session != "" && q.Session != session {
			continue
		}
		if !seen[q.Topic] {
			seen[q.Topic] = true
			out = append(out, q.Topic)
		}
	}
	sort.Strings(out)
	return out
}

// ── Export ────────────────────────────────────────────

type exportRecord struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Session      string   `json:"session"`
	Topic        string   `json:"topic"`
	Tags         []string `json:"tags"`
	FarRefs      []string `json:"farRefs"`
	Difficulty   int      `json:"difficulty"`
	Source       string   `json:"source,omitempty"`
}

// ExportJSON writes the corpus in the import format, grouped by session.
func (c *Corpus) ExportJSON(w io.Writer) error {
	qs := c.All()
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Session < qs[j].Session })

	records := make([]exportRecord, 0, len(qs))
	for _, q := range qs {
		records = append(records, exportRecord{
			ID:           q.ID,
			Prompt:       q.Prompt,
			Choices:      q.Choices[:],
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			Session:      string(q.Session),
			Topic:        q.Topic,
			Tags:         nonNil(q.Tags),
			FarRefs:      nonNil(q.FarRefs),
			Difficulty:   q.Difficulty,
			Source:       q.Source,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
