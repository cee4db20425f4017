package models

// ── Request Types ────────────────────────────────────────

type HistoryListRequest struct {
	Mode     *string `json:"mode"`
	Session  *string `json:"session"`
	Topic    *string `json:"topic"`
	Correct  *bool   `json:"correct"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// ── Response Types ────────────────────────────────────────

// HistoryListResponse pages through the attempt log, newest first.
type HistoryListResponse struct {
	Attempts []AttemptEntry `json:"attempts"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type HistoryStatsResponse struct {
	TotalAnswered   int                     `json:"total_answered"`
	TotalCorrect    int                     `json:"total_correct"`
	OverallAccuracy float64                 `json:"overall_accuracy"`
	SessionStats    map[string]AccuracyStat `json:"session_stats"`
	ModeStats       map[string]AccuracyStat `json:"mode_stats"`
	RecentTrend     []DailyAccuracy         `json:"recent_trend"`
}

type AccuracyStat struct {
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type DailyAccuracy struct {
	Date     string  `json:"date"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// MistakeEntry is a question the user has missed, with its latest miss.
type MistakeEntry struct {
	Question       Question     `json:"question"`
	IncorrectCount int          `json:"incorrect_count"`
	LastAttempt    AttemptEntry `json:"last_attempt"`
}

type MistakeListResponse struct {
	Mistakes []MistakeEntry `json:"mistakes"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}
