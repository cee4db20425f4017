package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/far-prep/backend/internal/models"
)

const sqliteProgressCols = `question_id, proficiency, correct_count, incorrect_count,
	last_answered_at, next_due_at, is_bookmarked, bookmarked_at`

const sqliteAttemptCols = `id, question_id, topic, session, selected_index, was_correct, mode, answered_at`

// SQLiteStore persists progress in a local SQLite file. The schema is owned
// by the migrations in the database package.
type SQLiteStore struct {
	db   *sqlx.DB
	opts Options
}

func NewSQLiteStore(db *sqlx.DB, opts Options) *SQLiteStore {
	return &SQLiteStore{db: db, opts: opts.withDefaults()}
}

// ── Entries ─────────────────────────────────────────────

func (s *SQLiteStore) ensure(ctx context.Context, ex sqlx.ExecerContext, id string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO progress (question_id, proficiency) VALUES (?, ?)
		 ON CONFLICT (question_id) DO NOTHING`,
		id, s.opts.InitialProficiency,
	)
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, id string) (models.ProgressEntry, error) {
	if err := s.ensure(ctx, s.db, id); err != nil {
		return models.ProgressEntry{}, err
	}
	e, _, err := s.Get(ctx, id)
	return e, err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.ProgressEntry, bool, error) {
	var e models.ProgressEntry
	err := s.db.GetContext(ctx, &e,
		`SELECT `+sqliteProgressCols+` FROM progress WHERE question_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProgressEntry{}, false, nil
	}
	if err != nil {
		return models.ProgressEntry{}, false, fmt.Errorf("get progress: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (map[string]models.ProgressEntry, error) {
	var rows []models.ProgressEntry
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+sqliteProgressCols+` FROM progress`); err != nil {
		return nil, fmt.Errorf("snapshot progress: %w", err)
	}
	out := make(map[string]models.ProgressEntry, len(rows))
	for _, e := range rows {
		out[e.QuestionID] = e
	}
	return out, nil
}

// Update runs fn inside an immediate transaction, so the read and the write
// of one entry are never interleaved with another writer.
func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*models.ProgressEntry) error) (models.ProgressEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ProgressEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensure(ctx, tx, id); err != nil {
		return models.ProgressEntry{}, err
	}

	var e models.ProgressEntry
	if err := tx.GetContext(ctx, &e,
		`SELECT `+sqliteProgressCols+` FROM progress WHERE question_id = ?`, id); err != nil {
		return models.ProgressEntry{}, fmt.Errorf("read progress: %w", err)
	}

	if err := fn(&e); err != nil {
		return models.ProgressEntry{}, err
	}
	e.QuestionID = id
	normalize(&e)

	_, err = tx.ExecContext(ctx,
		`UPDATE progress
		 SET proficiency = ?, correct_count = ?, incorrect_count = ?,
		     last_answered_at = ?, next_due_at = ?, is_bookmarked = ?, bookmarked_at = ?
		 WHERE question_id = ?`,
		e.Proficiency, e.CorrectCount, e.IncorrectCount,
		e.LastAnsweredAt, e.NextDueAt, e.IsBookmarked, e.BookmarkedAt, id,
	)
	if err != nil {
		return models.ProgressEntry{}, fmt.Errorf("write progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.ProgressEntry{}, fmt.Errorf("commit progress: %w", err)
	}
	return e, nil
}

// ── Bookmarks ───────────────────────────────────────────

func (s *SQLiteStore) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	e, err := s.Update(ctx, id, func(e *models.ProgressEntry) error {
		toggle(e, s.opts.Now())
		return nil
	})
	if err != nil {
		return false, err
	}
	return e.IsBookmarked, nil
}

func (s *SQLiteStore) Bookmarks(ctx context.Context) ([]string, error) {
	var marked []models.ProgressEntry
	if err := s.db.SelectContext(ctx, &marked,
		`SELECT `+sqliteProgressCols+` FROM progress WHERE is_bookmarked = 1`); err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	// Timestamps are stored as text; order them as times, not strings.
	sortBookmarks(marked)

	ids := make([]string, len(marked))
	for i, e := range marked {
		ids[i] = e.QuestionID
	}
	return ids, nil
}

// ── Attempts ────────────────────────────────────────────

func (s *SQLiteStore) AppendAttempt(ctx context.Context, a models.AttemptEntry) error {
	if a.At.IsZero() {
		a.At = s.opts.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (question_id, topic, session, selected_index, was_correct, mode, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.QuestionID, a.Topic, a.Session, a.SelectedIndex, a.WasCorrect, a.Mode, a.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM attempts
		 WHERE id <= (SELECT id FROM attempts ORDER BY id DESC LIMIT 1 OFFSET ?)`,
		s.opts.AttemptCap,
	)
	if err != nil {
		return fmt.Errorf("evict attempts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Attempts(ctx context.Context, limit int) ([]models.AttemptEntry, error) {
	query := `SELECT ` + sqliteAttemptCols + ` FROM attempts ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	out := []models.AttemptEntry{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ── Lifecycle ───────────────────────────────────────────

func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM attempts`, `DELETE FROM progress`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
