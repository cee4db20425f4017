// Package progress persists per-question learning state, bookmarks and the
// attempt log.
package progress

import (
	"context"
	"time"

	"github.com/far-prep/backend/internal/models"
)

const (
	// DefaultAttemptCap bounds the attempt log; the oldest entries go first.
	DefaultAttemptCap = 2000

	defaultInitialProficiency = 0.20
)

// Store is the persistence contract used by the queue builders and the
// attempt recorder. Update is the only read-modify-write path and is atomic
// per question.
type Store interface {
	GetOrCreate(ctx context.Context, id string) (models.ProgressEntry, error)
	Get(ctx context.Context, id string) (models.ProgressEntry, bool, error)
	Snapshot(ctx context.Context) (map[string]models.ProgressEntry, error)
	Update(ctx context.Context, id string, fn func(*models.ProgressEntry) error) (models.ProgressEntry, error)

	ToggleBookmark(ctx context.Context, id string) (bool, error)
	Bookmarks(ctx context.Context) ([]string, error)

	AppendAttempt(ctx context.Context, a models.AttemptEntry) error
	Attempts(ctx context.Context, limit int) ([]models.AttemptEntry, error)

	Reset(ctx context.Context) error
	Close() error
}

type Options struct {
	AttemptCap         int
	InitialProficiency float64
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.AttemptCap <= 0 {
		o.AttemptCap = DefaultAttemptCap
	}
	if o.InitialProficiency <= 0 {
		o.InitialProficiency = defaultInitialProficiency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) newEntry(id string) models.ProgressEntry {
	return models.ProgressEntry{QuestionID: id, Proficiency: o.InitialProficiency}
}

func toggle(e *models.ProgressEntry, now time.Time) {
	e.IsBookmarked = !e.IsBookmarked
	if e.IsBookmarked {
		t := now.UTC()
		e.BookmarkedAt = &t
	} else {
		e.BookmarkedAt = nil
	}
}

// normalize keeps timestamps in UTC so every backend orders them the same way.
func normalize(e *models.ProgressEntry) {
	for _, t := range []**time.Time{&e.LastAnsweredAt, &e.NextDueAt, &e.BookmarkedAt} {
		if *t != nil {
			u := (*t).UTC()
			*t = &u
		}
	}
}
