package questions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/far-prep/backend/internal/models"
)

const maxImportBytes = 50 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the study, answer and corpus endpoints on api.
func (h *Handler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/learn", h.queue(models.ModeLearn)).Methods("GET")
	api.HandleFunc("/weak-areas", h.queue(models.ModeWeakAreas)).Methods("GET")
	api.HandleFunc("/review", h.queue(models.ModeReview)).Methods("GET")
	api.HandleFunc("/bookmarks", h.queue(models.ModeBookmarks)).Methods("GET")
	api.HandleFunc("/topics", h.Topics).Methods("GET")
	api.HandleFunc("/exam", h.Exam).Methods("POST")
	api.HandleFunc("/catalog", h.Catalog).Methods("GET")

	api.HandleFunc("/questions/{id}", h.GetQuestion).Methods("GET")
	api.HandleFunc("/answer", h.SubmitAnswer).Methods("POST")
	api.HandleFunc("/bookmark", h.ToggleBookmark).Methods("POST")
	api.HandleFunc("/explain/{id}", h.Explain).Methods("GET")

	api.HandleFunc("/stats", h.Stats).Methods("GET")
	api.HandleFunc("/reset", h.Reset).Methods("POST")
	api.HandleFunc("/export", h.ExportQuestions).Methods("GET")
	api.HandleFunc("/import", h.ImportQuestions).Methods("POST")

	h.RegisterHistoryRoutes(api)
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
	case errors.Is(err, ErrInvalidSelection), errors.Is(err, ErrUnknownMode), errors.Is(err, ErrInvalidImport):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("[handler] %s error: %v", action, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: action + " failed: " + err.Error()})
	}
}

// ── Queues ──────────────────────────────────────────────

func (h *Handler) queue(mode models.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeQueue(w, r, QueueRequest{
			Mode:           mode,
			Shuffle:        queryBoolDefault(r, "shuffle", true),
			ShuffleChoices: queryBoolDefault(r, "shuffle_choices", true),
		})
	}
}

func (h *Handler) writeQueue(w http.ResponseWriter, r *http.Request, req QueueRequest) {
	questions, err := h.service.Queue(r.Context(), req)
	if err != nil {
		writeError(w, "Queue", err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	h.writeQueue(w, r, QueueRequest{
		Mode:           models.ModeTopics,
		Shuffle:        queryBoolDefault(r, "shuffle", true),
		ShuffleChoices: queryBoolDefault(r, "shuffle_choices", true),
		Filter: TopicFilter{
			Session:    models.Session(query.Get("session")),
			Topic:      query.Get("topic"),
			Difficulty: intQueryParam(query, "difficulty", 0),
			Search:     query.Get("search"),
		},
	})
}

func (h *Handler) Exam(w http.ResponseWriter, r *http.Request) {
	var req models.ExamRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	shuffleChoices := true
	if req.ShuffleChoices != nil {
		shuffleChoices = *req.ShuffleChoices
	}

	h.writeQueue(w, r, QueueRequest{
		Mode:           models.ModeExam,
		ShuffleChoices: shuffleChoices,
		ExamCount:      req.Count,
		ExamPreset:     ParseExamPreset(req.Preset),
	})
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Catalog())
}

// ── Questions & Answers ─────────────────────────────────

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.service.GetQuestion(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "GetQuestion", err)
		return
	}

	pq := h.service.Present(question, queryBoolDefault(r, "shuffle_choices", true))
	writeJSON(w, http.StatusOK, pq)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.QuestionID == "" || req.SelectedIndex == nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "question_id and selected_index are required"})
		return
	}
	if req.Mode != "" && !models.ValidModes[req.Mode] {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid mode"})
		return
	}

	var (
		resp *models.AnswerResponse
		err  error
	)
	if req.IndexMap != nil {
		resp, err = h.service.SubmitPresented(r.Context(), req.QuestionID, *req.IndexMap, *req.SelectedIndex, req.Mode)
	} else {
		resp, err = h.service.SubmitAnswer(r.Context(), req.QuestionID, *req.SelectedIndex, req.Mode)
	}
	if err != nil {
		writeError(w, "SubmitAnswer", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	var req models.BookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "question_id is required"})
		return
	}

	on, err := h.service.ToggleBookmark(r.Context(), req.QuestionID)
	if err != nil {
		writeError(w, "ToggleBookmark", err)
		return
	}

	writeJSON(w, http.StatusOK, models.BookmarkResponse{QuestionID: req.QuestionID, IsBookmarked: on})
}

func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var order *[models.ChoiceCount]int
	if raw := r.URL.Query().Get("index_map"); raw != "" {
		parsed, err := parseIndexMap(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		order = &parsed
	}

	resp, err := h.service.Explain(r.Context(), mux.Vars(r)["id"], order)
	if err != nil {
		writeError(w, "Explain", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseIndexMap reads a comma separated permutation such as "2,0,3,1".
func parseIndexMap(raw string) ([models.ChoiceCount]int, error) {
	var out [models.ChoiceCount]int
	parts := strings.Split(raw, ",")
	if len(parts) != models.ChoiceCount {
		return out, fmt.Errorf("index_map needs %d entries, got %d", models.ChoiceCount, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, fmt.Errorf("index_map entry %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ── Stats & Corpus ──────────────────────────────────────

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, "Stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetProgress(r.Context()); err != nil {
		writeError(w, "Reset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "progress reset"})
}

func (h *Handler) ExportQuestions(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(queryStringDefault(r, "format", FormatJSON))
	contentType := "application/json"
	switch format {
	case FormatJSON:
	case FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "format must be 'json' or 'xlsx'"})
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(&buf, format); err != nil {
		writeError(w, "Export", err)
		return
	}

	filename := h.service.ExportFilename(format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ImportQuestions accepts either a multipart upload in the "file" field or a
// raw body. The format comes from ?format= or the uploaded file's extension.
func (h *Handler) ImportQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	format := strings.ToLower(r.URL.Query().Get("format"))
	var body io.Reader = r.Body

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "No file uploaded"})
			return
		}
		defer file.Close()
		body = file
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
		}
	}

	result, err := h.service.Import(r.Context(), body, format)
	if err != nil {
		writeError(w, "Import", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ── Helpers ─────────────────────────────────────────────

// decodeOptionalBody decodes a JSON body, treating an empty one as zero values.
func decodeOptionalBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

func queryBoolDefault(r *http.Request, key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return defaultVal
	}
	return v
}
