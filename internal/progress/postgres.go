package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/far-prep/backend/internal/models"
)

const pgProgressCols = `question_id, proficiency, correct_count, incorrect_count,
	        last_answered_at, next_due_at, is_bookmarked, bookmarked_at`

type PostgresStore struct {
	db   *sql.DB
	opts Options
}

func NewPostgresStore(db *sql.DB, opts Options) *PostgresStore {
	return &PostgresStore{db: db, opts: opts.withDefaults()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.ProgressEntry, error) {
	var e models.ProgressEntry
	err := row.Scan(&e.QuestionID, &e.Proficiency, &e.CorrectCount, &e.IncorrectCount,
		&e.LastAnsweredAt, &e.NextDueAt, &e.IsBookmarked, &e.BookmarkedAt)
	return e, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ── Entries ─────────────────────────────────────────────

func (s *PostgresStore) ensure(ctx context.Context, ex execer, id string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO progress (question_id, proficiency) VALUES ($1, $2)
		 ON CONFLICT (question_id) DO NOTHING`,
		id, s.opts.InitialProficiency,
	)
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, id string) (models.ProgressEntry, error) {
	if err := s.ensure(ctx, s.db, id); err != nil {
		return models.ProgressEntry{}, err
	}
	e, _, err := s.Get(ctx, id)
	return e, err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.ProgressEntry, bool, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+pgProgressCols+` FROM progress WHERE question_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProgressEntry{}, false, nil
	}
	if err != nil {
		return models.ProgressEntry{}, false, fmt.Errorf("get progress: %w", err)
	}
	return e, true, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (map[string]models.ProgressEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgProgressCols+` FROM progress`)
	if err != nil {
		return nil, fmt.Errorf("snapshot progress: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.ProgressEntry)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out[e.QuestionID] = e
	}
	return out, rows.Err()
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent answers to
// the same question are applied one after the other.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*models.ProgressEntry) error) (models.ProgressEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ProgressEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensure(ctx, tx, id); err != nil {
		return models.ProgressEntry{}, err
	}

	e, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+pgProgressCols+` FROM progress WHERE question_id = $1 FOR UPDATE`, id))
	if err != nil {
		return models.ProgressEntry{}, fmt.Errorf("lock progress: %w", err)
	}

	if err := fn(&e); err != nil {
		return models.ProgressEntry{}, err
	}
	e.QuestionID = id
	normalize(&e)

	_, err = tx.ExecContext(ctx,
		`UPDATE progress
		 SET proficiency = $1, correct_count = $2, incorrect_count = $3,
		     last_answered_at = $4, next_due_at = $5, is_bookmarked = $6, bookmarked_at = $7
		 WHERE question_id = $8`,
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

func (s *PostgresStore) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	e, err := s.Update(ctx, id, func(e *models.ProgressEntry) error {
		toggle(e, s.opts.Now())
		return nil
	})
	if err != nil {
		return false, err
	}
	return e.IsBookmarked, nil
}

func (s *PostgresStore) Bookmarks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id FROM progress WHERE is_bookmarked
		 ORDER BY bookmarked_at ASC NULLS FIRST, question_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ── Attempts ────────────────────────────────────────────

func (s *PostgresStore) AppendAttempt(ctx context.Context, a models.AttemptEntry) error {
	if a.At.IsZero() {
		a.At = s.opts.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (question_id, topic, session, selected_index, was_correct, mode, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.QuestionID, a.Topic, a.Session, a.SelectedIndex, a.WasCorrect, a.Mode, a.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM attempts
		 WHERE id <= (SELECT id FROM attempts ORDER BY id DESC LIMIT 1 OFFSET $1)`,
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

func (s *PostgresStore) Attempts(ctx context.Context, limit int) ([]models.AttemptEntry, error) {
	query := `SELECT id, question_id, topic, session, selected_index, was_correct, mode, answered_at
		 FROM attempts ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	out := make([]models.AttemptEntry, 0)
	for rows.Next() {
		var a models.AttemptEntry
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Topic, &a.Session,
			&a.SelectedIndex, &a.WasCorrect, &a.Mode, &a.At); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest last.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ── Lifecycle ───────────────────────────────────────────

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE attempts, progress`)
	if err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
