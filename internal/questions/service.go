package questions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/far-prep/backend/internal/corpus"
	"github.com/far-prep/backend/internal/explain"
	"github.com/far-prep/backend/internal/models"
	"github.com/far-prep/backend/internal/progress"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidSelection = errors.New("selected index out of range")
	ErrUnknownMode      = errors.New("unknown study mode")
	ErrInvalidImport    = errors.New("invalid import")
)

const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

type ServiceOptions struct {
	Shuffler  *Shuffler
	WeakAreas *WeakAreaPolicy
	Explainer *explain.Explainer
	// CorpusPath, when set, receives the merged corpus after an import.
	CorpusPath string
	Now        func() time.Time
}

type Service struct {
	corpus     *corpus.Corpus
	store      progress.Store
	builder    *QueueBuilder
	presenter  *Presenter
	shuffler   *Shuffler
	explainer  *explain.Explainer
	corpusPath string
	now        func() time.Time
}

func NewService(c *corpus.Corpus, store progress.Store, opts ServiceOptions) *Service {
	weak := DefaultWeakAreaPolicy()
	if opts.WeakAreas != nil {
		weak = *opts.WeakAreas
	}
	explainer := opts.Explainer
	if explainer == nil {
		explainer = explain.New(explain.Options{})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	log.Printf("[service] corpus=%d questions weak-areas=%d topics/%.2f/%.2f explainer=%s",
		c.Len(), weak.TopicCount, weak.WeakShare, weak.OtherShare, explainer.ModelName())

	return &Service{
		corpus:     c,
		store:      store,
		builder:    NewQueueBuilder(opts.Shuffler, weak),
		presenter:  NewPresenter(opts.Shuffler),
		shuffler:   opts.Shuffler,
		explainer:  explainer,
		corpusPath: opts.CorpusPath,
		now:        func() time.Time { return now().UTC() },
	}
}

func (s *Service) Corpus() *corpus.Corpus {
	return s.corpus
}

func (s *Service) GetQuestion(id string) (models.Question, error) {
	q, ok := s.corpus.Get(id)
	if !ok {
		return models.Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func (s *Service) snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return Snapshot(snap), nil
}

// ── Queues ──────────────────────────────────────────────

type QueueRequest struct {
	Mode           models.Mode
	Shuffle        bool
	ShuffleChoices bool
	ExamCount      int
	ExamPreset     ExamPreset
	Filter         TopicFilter
}

// BuildQueue returns the ordered questions for a study mode.
func (s *Service) BuildQueue(ctx context.Context, req QueueRequest) ([]models.Question, error) {
	all := s.corpus.All()

	switch req.Mode {
	case models.ModeTopics:
		return s.builder.Topics(all, req.Filter, req.Shuffle), nil
	case models.ModeBookmarks:
		ids, err := s.store.Bookmarks(ctx)
		if err != nil {
			return nil, fmt.Errorf("load bookmarks: %w", err)
		}
		return s.builder.Bookmarks(all, ids, req.Shuffle), nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case models.ModeLearn:
		return s.builder.Learn(all, snap, s.now(), req.Shuffle), nil
	case models.ModeWeakAreas:
		return s.builder.WeakAreas(all, snap, req.Shuffle), nil
	case models.ModeReview:
		return s.builder.Review(all, snap, req.Shuffle), nil
	case models.ModeExam:
		return s.builder.Exam(all, snap, ValidExamCount(req.ExamCount), req.ExamPreset), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

// Queue builds a queue and presents every question in it.
func (s *Service) Queue(ctx context.Context, req QueueRequest) ([]models.PresentedQuestion, error) {
	qs, err := s.BuildQueue(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.presenter.PresentAll(qs, PresentOptions{ShuffleChoices: req.ShuffleChoices}), nil
}

func (s *Service) Catalog() models.CatalogResponse {
	resp := models.CatalogResponse{
		TotalQuestions: s.corpus.Len(),
		Sessions:       s.corpus.Sessions(),
		Topics:         make(map[models.Session][]string),
	}
	for _, session := range resp.Sessions {
		resp.Topics[session] = s.corpus.Topics(session)
	}
	return resp
}

func (s *Service) Present(q models.Question, shuffleChoices bool) models.PresentedQuestion {
	return s.presenter.Present(q, PresentOptions{ShuffleChoices: shuffleChoices})
}

// NewStudySession batches qs for an interactive session.
func (s *Service) NewStudySession(qs []models.Question, shuffleChoices bool, batchSize int) *StudySession {
	return newStudySession(qs, s.presenter, s.shuffler, batchSize, shuffleChoices)
}

// ── Answers ─────────────────────────────────────────────

// Answer is one response in original choice space.
type Answer struct {
	QuestionID    string
	CorrectIndex  int
	SelectedIndex int
	Mode          models.Mode
	Session       models.Session
	Topic         string
}

type AnswerResult struct {
	WasCorrect  bool
	Proficiency float64
	NextDueAt   time.Time
	Mastered    bool
	Entry       models.ProgressEntry
}

func validIndex(i int) bool {
	return i >= 0 && i < models.ChoiceCount
}

// exists reports whether id is known to the corpus or already has progress.
func (s *Service) exists(ctx context.Context, id string) (bool, error) {
	if _, ok := s.corpus.Get(id); ok {
		return true, nil
	}
	_, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get progress: %w", err)
	}
	return ok, nil
}

// DontKnow is the selection for a question the user skips without guessing.
// It is recorded as a miss.
const DontKnow = -1

// RecordAnswer scores an answer given in original choice space and persists
// the new progress and an attempt log entry.
func (s *Service) RecordAnswer(ctx context.Context, a Answer) (AnswerResult, error) {
	if !validIndex(a.CorrectIndex) || (a.SelectedIndex != DontKnow && !validIndex(a.SelectedIndex)) {
		return AnswerResult{}, ErrInvalidSelection
	}
	return s.record(ctx, a, a.SelectedIndex == a.CorrectIndex)
}

// RecordPresented scores an on-screen selection with CheckAnswer and records
// it in original choice space.
func (s *Service) RecordPresented(ctx context.Context, pq models.PresentedQuestion, selectedPresented int, mode models.Mode) (AnswerResult, error) {
	original := DontKnow
	if selectedPresented != DontKnow {
		idx, err := OriginalIndex(pq, selectedPresented)
		if err != nil {
			return AnswerResult{}, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		original = idx
	}
	return s.record(ctx, Answer{
		QuestionID:    pq.ID,
		CorrectIndex:  pq.OriginalCorrectIndex,
		SelectedIndex: original,
		Mode:          mode,
		Session:       pq.Session,
		Topic:         pq.Topic,
	}, CheckAnswer(pq, selectedPresented))
}

func (s *Service) record(ctx context.Context, a Answer, wasCorrect bool) (AnswerResult, error) {
	ok, err := s.exists(ctx, a.QuestionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if !ok {
		return AnswerResult{}, ErrQuestionNotFound
	}

	now := s.now()
	entry, err := s.store.Update(ctx, a.QuestionID, func(e *models.ProgressEntry) error {
		e.Proficiency = UpdateProficiency(e.Proficiency, wasCorrect)
		if wasCorrect {
			e.CorrectCount++
		} else {
			e.IncorrectCount++
		}
		due := NextDueAt(e.Proficiency, now)
		e.LastAnsweredAt = &now
		e.NextDueAt = &due
		return nil
	})
	if err != nil {
		return AnswerResult{}, fmt.Errorf("update progress: %w", err)
	}

	err = s.store.AppendAttempt(ctx, models.AttemptEntry{
		QuestionID:    a.QuestionID,
		Topic:         a.Topic,
		Session:       a.Session,
		SelectedIndex: a.SelectedIndex,
		WasCorrect:    wasCorrect,
		Mode:          a.Mode,
		At:            now,
	})
	if err != nil {
		return AnswerResult{}, fmt.Errorf("append attempt: %w", err)
	}

	return AnswerResult{
		WasCorrect:  wasCorrect,
		Proficiency: entry.Proficiency,
		NextDueAt:   *entry.NextDueAt,
		Mastered:    IsMastered(entry.Proficiency),
		Entry:       entry,
	}, nil
}

// SubmitAnswer looks the question up in the corpus and records a selection
// made in original choice space.
func (s *Service) SubmitAnswer(ctx context.Context, questionID string, selectedOriginal int, mode models.Mode) (*models.AnswerResponse, error) {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = models.ModeLearn
	}

	res, err := s.RecordAnswer(ctx, Answer{
		QuestionID:    q.ID,
		CorrectIndex:  q.CorrectIndex,
		SelectedIndex: selectedOriginal,
		Mode:          mode,
		Session:       q.Session,
		Topic:         q.Topic,
	})
	if err != nil {
		return nil, err
	}

	return &models.AnswerResponse{
		WasCorrect:     res.WasCorrect,
		CorrectIndex:   q.CorrectIndex,
		Explanation:    q.Explanation,
		NewProficiency: res.Proficiency,
		NextDueAt:      res.NextDueAt,
		Mastered:       res.Mastered,
	}, nil
}

// SubmitPresented records a selection made against the order given by
// indexMap, as echoed back by a client that displayed a shuffled question.
func (s *Service) SubmitPresented(ctx context.Context, questionID string, indexMap [models.ChoiceCount]int, selectedPresented int, mode models.Mode) (*models.AnswerResponse, error) {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	pq, err := PresentWithOrder(q, indexMap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	if mode == "" {
		mode = models.ModeLearn
	}

	res, err := s.RecordPresented(ctx, pq, selectedPresented, mode)
	if err != nil {
		return nil, err
	}

	presentedCorrect := pq.PresentedCorrectIndex
	return &models.AnswerResponse{
		WasCorrect:            res.WasCorrect,
		CorrectIndex:          q.CorrectIndex,
		PresentedCorrectIndex: &presentedCorrect,
		Explanation:           q.Explanation,
		NewProficiency:        res.Proficiency,
		NextDueAt:             res.NextDueAt,
		Mastered:              res.Mastered,
	}, nil
}

// ── Bookmarks & Reset ───────────────────────────────────

func (s *Service) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	ok, err := s.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrQuestionNotFound
	}
	on, err := s.store.ToggleBookmark(ctx, id)
	if err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	return on, nil
}

func (s *Service) ResetProgress(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	log.Printf("[service] progress reset")
	return nil
}

// ── Stats & Explanations ────────────────────────────────

func (s *Service) Stats(ctx context.Context) (models.StatsResponse, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}
	return ComputeStats(s.corpus.All(), snap, s.now()), nil
}

// DueCount is the number of questions due now, counting never-seen ones.
func (s *Service) DueCount(ctx context.Context) (int, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.DueNow, nil
}

// Explain builds the post-answer explanation. order is the index map the
// question was shown with; nil means original order.
func (s *Service) Explain(ctx context.Context, id string, order *[models.ChoiceCount]int) (*models.ExplanationResponse, error) {
	q, err := s.GetQuestion(id)
	if err != nil {
		return nil, err
	}

	pq := s.presenter.Present(q, PresentOptions{})
	if order != nil {
		pq, err = PresentWithOrder(q, *order)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
	}

	enhanced, source := s.explainer.Explain(ctx, pq)
	return &models.ExplanationResponse{
		QuestionID:  q.ID,
		Explanation: enhanced,
		Contrast:    explain.ContrastStatements(pq),
		Source:      source,
	}, nil
}

// ── Import / Export ─────────────────────────────────────

// Import decodes questions, merges the new ones into the corpus and, when a
// corpus path is configured, saves the result there.
func (s *Service) Import(ctx context.Context, r io.Reader, format string) (*models.ImportResult, error) {
	var (
		res *corpus.LoadResult
		err error
	)
	switch strings.ToLower(format) {
	case FormatXLSX:
		res, err = corpus.DecodeXLSX(r, corpus.DefaultSheetLayout())
	case FormatJSON, "":
		res, err = corpus.DecodeJSON(r)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidImport, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	merged := s.corpus.Merge(res.Questions)
	result := &models.ImportResult{
		TotalInPayload: res.Total,
		Imported:       merged.Added,
		Skipped:        merged.Duplicates,
		Invalid:        res.InvalidCount(),
	}
	if res.Invalid != nil {
		result.Errors = res.Invalid.Errors
	}
	log.Printf("[service] import: %d of %d imported, %d duplicates, %d invalid",
		result.Imported, result.TotalInPayload, result.Skipped, result.Invalid)

	if merged.Added > 0 && s.corpusPath != "" {
		if err := s.corpus.SaveFile(s.corpusPath); err != nil {
			return result, fmt.Errorf("save corpus: %w", err)
		}
	}
	return result, nil
}

// ExportFilename names a download of the corpus, dated by the service clock.
func (s *Service) ExportFilename(format string) string {
	return fmt.Sprintf("questions-export-%s.%s", s.now().Format("2006-01-02"), format)
}

func (s *Service) Export(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case FormatXLSX:
		return corpus.EncodeXLSX(w, s.corpus.All(), corpus.DefaultSheetLayout())
	case FormatJSON, "":
		return s.corpus.ExportJSON(w)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ── History ─────────────────────────────────────────────

func clampPage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	return page, pageSize
}

func pageBounds(total, page, pageSize int) (int, int) {
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

func (s *Service) attemptsNewestFirst(ctx context.Context) ([]models.AttemptEntry, error) {
	attempts, err := s.store.Attempts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	for i, j := 0, len(attempts)-1; i < j; i, j = i+1, j-1 {
		attempts[i], attempts[j] = attempts[j], attempts[i]
	}
	return attempts, nil
}

func (s *Service) History(ctx context.Context, req models.HistoryListRequest) (*models.HistoryListResponse, error) {
	req.Page, req.PageSize = clampPage(req.Page, req.PageSize)

	attempts, err := s.attemptsNewestFirst(ctx)
	if err != nil {
		return nil, err
	}

	matched := []models.AttemptEntry{}
	for _, a := range attempts {
		if req.Mode != nil && string(a.Mode) != *req.Mode {
			continue
		}
		if req.Session != nil && string(a.Session) != *req.Session {
			continue
		}
		if req.Topic != nil && a.Topic != *req.Topic {
			continue
		}
		if req.Correct != nil && a.WasCorrect != *req.Correct {
			continue
		}
		matched = append(matched, a)
	}

	start, end := pageBounds(len(matched), req.Page, req.PageSize)
	return &models.HistoryListResponse{
		Attempts: matched[start:end],
		Total:    len(matched),
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// Mistakes lists questions with at least one miss, most recently missed first.
func (s *Service) Mistakes(ctx context.Context, page, pageSize int) (*models.MistakeListResponse, error) {
	page, pageSize = clampPage(page, pageSize)

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attemptsNewestFirst(ctx)
	if err != nil {
		return nil, err
	}

	lastMiss := make(map[string]models.AttemptEntry)
	for _, a := range attempts {
		if _, seen := lastMiss[a.QuestionID]; !seen && !a.WasCorrect {
			lastMiss[a.QuestionID] = a
		}
	}

	mistakes := []models.MistakeEntry{}
	for _, q := range s.corpus.All() {
		e, ok := snap[q.ID]
		if !ok || e.IncorrectCount == 0 {
			continue
		}
		mistakes = append(mistakes, models.MistakeEntry{
			Question:       q,
			IncorrectCount: e.IncorrectCount,
			LastAttempt:    lastMiss[q.ID],
		})
	}
	// Misses already evicted from the attempt log sort last.
	sort.SliceStable(mistakes, func(i, j int) bool {
		return mistakes[i].LastAttempt.At.After(mistakes[j].LastAttempt.At)
	})

	start, end := pageBounds(len(mistakes), page, pageSize)
	return &models.MistakeListResponse{
		Mistakes: mistakes[start:end],
		Total:    len(mistakes),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

const trendDays = 7

func accuracyOf(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	return roundAccuracy(float64(correct) / float64(answered))
}

func (s *Service) HistoryStats(ctx context.Context) (*models.HistoryStatsResponse, error) {
	attempts, err := s.store.Attempts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	resp := &models.HistoryStatsResponse{
		SessionStats: make(map[string]models.AccuracyStat),
		ModeStats:    make(map[string]models.AccuracyStat),
		RecentTrend:  []models.DailyAccuracy{},
	}

	today := s.now().Truncate(24 * time.Hour)
	days := make(map[string]*models.DailyAccuracy)
	for i := trendDays - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i).Format("2006-01-02")
		resp.RecentTrend = append(resp.RecentTrend, models.DailyAccuracy{Date: d})
	}
	for i := range resp.RecentTrend {
		days[resp.RecentTrend[i].Date] = &resp.RecentTrend[i]
	}

	tally := func(m map[string]models.AccuracyStat, key string, correct bool) {
		st := m[key]
		st.Answered++
		if correct {
			st.Correct++
		}
		m[key] = st
	}

	for _, a := range attempts {
		resp.TotalAnswered++
		if a.WasCorrect {
			resp.TotalCorrect++
		}
		tally(resp.SessionStats, string(a.Session), a.WasCorrect)
		tally(resp.ModeStats, string(a.Mode), a.WasCorrect)
		if d, ok := days[a.At.UTC().Format("2006-01-02")]; ok {
			d.Answered++
			if a.WasCorrect {
				d.Correct++
			}
		}
	}

	resp.OverallAccuracy = accuracyOf(resp.TotalCorrect, resp.TotalAnswered)
	for _, m := range []map[string]models.AccuracyStat{resp.SessionStats, resp.ModeStats} {
		for k, st := range m {
			st.Accuracy = accuracyOf(st.Correct, st.Answered)
			m[k] = st
		}
	}
	for i := range resp.RecentTrend {
		d := &resp.RecentTrend[i]
		d.Accuracy = accuracyOf(d.Correct, d.Answered)
	}
	return resp, nil
}
