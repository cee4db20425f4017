package questions

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/far-prep/backend/internal/models"
)

// Snapshot is a read-only view of progress keyed by question id.
type Snapshot map[string]models.ProgressEntry

// entry returns the progress for id, or a fresh entry when none exists yet.
func (s Snapshot) entry(id string) models.ProgressEntry {
	if e, ok := s[id]; ok {
		return e
	}
	return models.ProgressEntry{QuestionID: id, Proficiency: InitialProficiency()}
}

// ── Policies ────────────────────────────────────────────

const learnFallbackLimit = 50

// WeakAreaPolicy holds the tunable constants of the weak-areas queue.
type WeakAreaPolicy struct {
	TopicCount    int
	WeakShare     float64
	OtherShare    float64
	FallbackLimit int
}

func DefaultWeakAreaPolicy() WeakAreaPolicy {
	return WeakAreaPolicy{
		TopicCount:    3,
		WeakShare:     0.7,
		OtherShare:    0.3,
		FallbackLimit: 50,
	}
}

// ExamCounts is the allow-list of exam lengths.
var ExamCounts = []int{10, 25, 50}

const defaultExamCount = 25

// ValidExamCount returns n when it is an allowed exam length, otherwise the default.
func ValidExamCount(n int) int {
	for _, c := range ExamCounts {
		if n == c {
			return n
		}
	}
	return defaultExamCount
}

type ExamPresetKind string

const (
	ExamAll     ExamPresetKind = "all"
	ExamSession ExamPresetKind = "session"
	ExamWeak    ExamPresetKind = "weak"
)

type ExamPreset struct {
	Kind    ExamPresetKind
	Session models.Session
}

func (p ExamPreset) String() string {
	switch p.Kind {
	case ExamSession:
		return string(p.Session) + " Only"
	case ExamWeak:
		return "Weak Areas Only"
	default:
		return "All Sessions Mixed"
	}
}

// ParseExamPreset accepts "all", "weak", "session:<name>", a bare session name
// ("Session 2" or "2"), and the display labels ("All Sessions Mixed",
// "Session 2 Only", "Weak Areas Only"). Anything unrecognised maps to all.
func ParseExamPreset(raw string) ExamPreset {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, " only")
	s = strings.TrimPrefix(s, "session:")

	switch s {
	case "", "all", "all sessions mixed", "mixed":
		return ExamPreset{Kind: ExamAll}
	case "weak", "weak areas", "weak-areas", "weak_areas":
		return ExamPreset{Kind: ExamWeak}
	}

	s = strings.TrimSpace(strings.TrimPrefix(s, "session"))
	if n, err := strconv.Atoi(s); err == nil {
		session := models.Session("Session " + strconv.Itoa(n))
		if models.ValidSessions[session] {
			return ExamPreset{Kind: ExamSession, Session: session}
		}
	}
	return ExamPreset{Kind: ExamAll}
}

// TopicFilter is a conjunctive filter; zero-valued fields match everything.
type TopicFilter struct {
	Session    models.Session
	Topic      string
	Difficulty int
	Search     string
}

// ── Builder ─────────────────────────────────────────────

// QueueBuilder produces ordered question lists from a corpus and a progress
// snapshot. It holds no state beyond its shuffler and policy.
type QueueBuilder struct {
	shuffler *Shuffler
	weak     WeakAreaPolicy
}

func NewQueueBuilder(s *Shuffler, weak WeakAreaPolicy) *QueueBuilder {
	if s == nil {
		s = defaultShuffler
	}
	return &QueueBuilder{shuffler: s, weak: weak}
}

func (b *QueueBuilder) maybeShuffle(qs []models.Question, shuffle bool) []models.Question {
	if shuffle {
		return ShuffleSlice(b.shuffler, qs)
	}
	return qs
}

// Learn returns every due question, least-mastered first. When nothing is
// due it falls back to the lowest-scoring questions that are not yet due.
func (b *QueueBuilder) Learn(corpus []models.Question, snap Snapshot, now time.Time, shuffle bool) []models.Question {
	due := make([]models.Question, 0)
	notDue := make([]models.Question, 0)
	for _, q := range corpus {
		if snap.entry(q.ID).IsDue(now) {
			due = append(due, q)
		} else {
			notDue = append(notDue, q)
		}
	}

	byScore := func(list []models.Question) {
		sort.SliceStable(list, func(i, j int) bool {
			return snap.entry(list[i].ID).Proficiency < snap.entry(list[j].ID).Proficiency
		})
	}

	queue := due
	if len(due) > 0 {
		byScore(due)
	} else {
		byScore(notDue)
		if len(notDue) > learnFallbackLimit {
			notDue = notDue[:learnFallbackLimit]
		}
		queue = notDue
	}
	return b.maybeShuffle(queue, shuffle)
}

// WeakTopics ranks attempted topics by ascending accuracy, ties by name.
// Topics with no attempts are not ranked.
func WeakTopics(corpus []models.Question, snap Snapshot) []models.TopicStat {
	type acc struct{ correct, total int }
	byTopic := make(map[string]*acc)
	for _, q := range corpus {
		e, ok := snap[q.ID]
		if !ok || e.Attempts() == 0 {
			continue
		}
		a := byTopic[q.Topic]
		if a == nil {
			a = &acc{}
			byTopic[q.Topic] = a
		}
		a.correct += e.CorrectCount
		a.total += e.Attempts()
	}

	stats := make([]models.TopicStat, 0, len(byTopic))
	for topic, a := range byTopic {
		stats = append(stats, models.TopicStat{
			Topic:    topic,
			Accuracy: float64(a.correct) / float64(a.total),
			Total:    a.total,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Accuracy != stats[j].Accuracy {
			return stats[i].Accuracy < stats[j].Accuracy
		}
		return stats[i].Topic < stats[j].Topic
	})
	return stats
}

// WeakAreas mixes attempted questions from the weakest topics with a smaller
// slice of the rest of the corpus. Each part is shuffled independently.
func (b *QueueBuilder) WeakAreas(corpus []models.Question, snap Snapshot, shuffle bool) []models.Question {
	ranked := WeakTopics(corpus, snap)
	if len(ranked) > b.weak.TopicCount {
		ranked = ranked[:b.weak.TopicCount]
	}
	weakTopic := make(map[string]bool, len(ranked))
	for _, t := range ranked {
		weakTopic[t.Topic] = true
	}

	weakPool := make([]models.Question, 0)
	otherPool := make([]models.Question, 0)
	for _, q := range corpus {
		if weakTopic[q.Topic] && snap.entry(q.ID).Attempts() > 0 {
			weakPool = append(weakPool, q)
		} else {
			otherPool = append(otherPool, q)
		}
	}

	if len(weakPool) == 0 {
		fallback := ShuffleSlice(b.shuffler, corpus)
		if len(fallback) > b.weak.FallbackLimit {
			fallback = fallback[:b.weak.FallbackLimit]
		}
		return fallback
	}

	weakCount := ceilShare(len(weakPool), b.weak.WeakShare)
	otherCount := min(ceilShare(len(weakPool), b.weak.OtherShare), len(otherPool))

	combined := make([]models.Question, 0, weakCount+otherCount)
	combined = append(combined, ShuffleSlice(b.shuffler, weakPool)[:weakCount]...)
	combined = append(combined, ShuffleSlice(b.shuffler, otherPool)[:otherCount]...)
	return b.maybeShuffle(combined, shuffle)
}

// ceilShare is ceil(n*share) clamped to [0, n], tolerant of float noise.
func ceilShare(n int, share float64) int {
	c := int(math.Ceil(float64(n)*share - 1e-9))
	return max(0, min(c, n))
}

// Review returns questions answered wrong at least once, most-missed first.
func (b *QueueBuilder) Review(corpus []models.Question, snap Snapshot, shuffle bool) []models.Question {
	missed := make([]models.Question, 0)
	for _, q := range corpus {
		if snap.entry(q.ID).IncorrectCount > 0 {
			missed = append(missed, q)
		}
	}
	sort.SliceStable(missed, func(i, j int) bool {
		return snap.entry(missed[i].ID).IncorrectCount > snap.entry(missed[j].ID).IncorrectCount
	})
	return b.maybeShuffle(missed, shuffle)
}

// Bookmarks returns the bookmarked questions in the order given by ids.
// Ids missing from the corpus are skipped.
func (b *QueueBuilder) Bookmarks(corpus []models.Question, ids []string, shuffle bool) []models.Question {
	byID := make(map[string]models.Question, len(corpus))
	for _, q := range corpus {
		byID[q.ID] = q
	}
	list := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			list = append(list, q)
		}
	}
	return b.maybeShuffle(list, shuffle)
}

// Exam filters by preset, shuffles, and truncates to the validated count.
func (b *QueueBuilder) Exam(corpus []models.Question, snap Snapshot, count int, preset ExamPreset) []models.Question {
	count = ValidExamCount(count)

	var pool []models.Question
	switch preset.Kind {
	case ExamWeak:
		for _, q := range corpus {
			if snap.entry(q.ID).IncorrectCount > 0 {
				pool = append(pool, q)
			}
		}
		if len(pool) == 0 {
			pool = corpus
		}
	case ExamSession:
		for _, q := range corpus {
			if q.Session == preset.Session {
				pool = append(pool, q)
			}
		}
	default:
		pool = corpus
	}

	out := ShuffleSlice(b.shuffler, pool)
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// Topics applies a conjunctive filter over session, topic, difficulty and
// prompt text.
func (b *QueueBuilder) Topics(corpus []models.Question, f TopicFilter, shuffle bool) []models.Question {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Question, 0)
	for _, q := range corpus {
		if f.Session != "" && q.Session != f.Session {
			continue
		}
		if f.Topic != "" && q.Topic != f.Topic {
			continue
		}
		if f.Difficulty != 0 && effectiveDifficulty(q) != f.Difficulty {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(q.Prompt), search) {
			continue
		}
		out = append(out, q)
	}
	return b.maybeShuffle(out, shuffle)
}

func effectiveDifficulty(q models.Question) int {
	if q.Difficulty < 1 {
		return 1
	}
	return q.Difficulty
}
