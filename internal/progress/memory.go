package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/far-prep/backend/internal/models"
)

// MemoryStore keeps all state in process behind one mutex. When opened with
// a path it writes the whole state back to a JSON file after every change.
type MemoryStore struct {
	mu       sync.Mutex
	opts     Options
	path     string
	entries  map[string]models.ProgressEntry
	attempts []models.AttemptEntry
	nextID   int64
}

type fileState struct {
	Progress      map[string]models.ProgressEntry `json:"progress"`
	Attempts      []models.AttemptEntry           `json:"attempts"`
	NextAttemptID int64                           `json:"next_attempt_id"`
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:    opts.withDefaults(),
		entries: make(map[string]models.ProgressEntry),
		nextID:  1,
	}
}

// OpenFileStore loads state from path if it exists and persists to it on
// every mutation.
func OpenFileStore(path string, opts Options) (*MemoryStore, error) {
	s := NewMemoryStore(opts)
	s.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode progress file: %w", err)
	}
	if st.Progress != nil {
		s.entries = st.Progress
	}
	s.attempts = st.Attempts
	if st.NextAttemptID > s.nextID {
		s.nextID = st.NextAttemptID
	}
	return s, nil
}

func (s *MemoryStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(fileState{
		Progress:      s.entries,
		Attempts:      s.attempts,
		NextAttemptID: s.nextID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}

// ── Entries ─────────────────────────────────────────────

func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (models.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		return e, nil
	}
	e := s.opts.newEntry(id)
	s.entries[id] = e
	if err := s.persistLocked(); err != nil {
		delete(s.entries, id)
		return models.ProgressEntry{}, err
	}
	return e, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.ProgressEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok, nil
}

func (s *MemoryStore) Snapshot(ctx context.Context) (map[string]models.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.ProgressEntry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*models.ProgressEntry) error) (models.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[id]
	e := prev
	if !existed {
		e = s.opts.newEntry(id)
	}
	if err := fn(&e); err != nil {
		return models.ProgressEntry{}, err
	}
	e.QuestionID = id
	normalize(&e)

	s.entries[id] = e
	if err := s.persistLocked(); err != nil {
		if existed {
			s.entries[id] = prev
		} else {
			delete(s.entries, id)
		}
		return models.ProgressEntry{}, err
	}
	return e, nil
}

// ── Bookmarks ───────────────────────────────────────────

func (s *MemoryStore) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	e, err := s.Update(ctx, id, func(e *models.ProgressEntry) error {
		toggle(e, s.opts.Now())
		return nil
	})
	if err != nil {
		return false, err
	}
	return e.IsBookmarked, nil
}

func (s *MemoryStore) Bookmarks(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	marked := make([]models.ProgressEntry, 0)
	for _, e := range s.entries {
		if e.IsBookmarked {
			marked = append(marked, e)
		}
	}
	s.mu.Unlock()

	sortBookmarks(marked)
	ids := make([]string, len(marked))
	for i, e := range marked {
		ids[i] = e.QuestionID
	}
	return ids, nil
}

// sortBookmarks orders by the time the bookmark was set, then by id.
func sortBookmarks(marked []models.ProgressEntry) {
	sort.Slice(marked, func(i, j int) bool {
		a, b := marked[i].BookmarkedAt, marked[j].BookmarkedAt
		switch {
		case a == nil && b == nil:
		case a == nil:
			return true
		case b == nil:
			return false
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return marked[i].QuestionID < marked[j].QuestionID
	})
}

// ── Attempts ────────────────────────────────────────────

func (s *MemoryStore) AppendAttempt(ctx context.Context, a models.AttemptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID
	if a.At.IsZero() {
		a.At = s.opts.Now()
	}
	a.At = a.At.UTC()

	prevAttempts, prevID := s.attempts, s.nextID
	s.nextID++
	s.attempts = append(s.attempts, a)
	if over := len(s.attempts) - s.opts.AttemptCap; over > 0 {
		s.attempts = append([]models.AttemptEntry(nil), s.attempts[over:]...)
	}

	if err := s.persistLocked(); err != nil {
		s.attempts, s.nextID = prevAttempts, prevID
		return err
	}
	return nil
}

func (s *MemoryStore) Attempts(ctx context.Context, limit int) ([]models.AttemptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.attempts
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]models.AttemptEntry, len(src))
	copy(out, src)
	return out, nil
}

// ── Lifecycle ───────────────────────────────────────────

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]models.ProgressEntry)
	s.attempts = nil
	return s.persistLocked()
}

func (s *MemoryStore) Close() error {
	return nil
}
