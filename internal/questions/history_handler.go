package questions

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/far-prep/backend/internal/models"
)

// RegisterHistoryRoutes registers the attempt-log endpoints.
func (h *Handler) RegisterHistoryRoutes(api *mux.Router) {
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/history/mistakes", h.GetMistakes).Methods("GET")
	api.HandleFunc("/history/stats", h.GetHistoryStats).Methods("GET")
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	req := models.HistoryListRequest{
		Mode:     queryStringPtr(r, "mode"),
		Session:  queryStringPtr(r, "session"),
		Topic:    queryStringPtr(r, "topic"),
		Correct:  queryBoolPtr(r, "correct"),
		Page:     intQueryParam(r.URL.Query(), "page", 1),
		PageSize: intQueryParam(r.URL.Query(), "page_size", 20),
	}

	resp, err := h.service.History(r.Context(), req)
	if err != nil {
		writeError(w, "GetHistory", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetMistakes(w http.ResponseWriter, r *http.Request) {
	page := intQueryParam(r.URL.Query(), "page", 1)
	pageSize := intQueryParam(r.URL.Query(), "page_size", 20)

	resp, err := h.service.Mistakes(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, "GetMistakes", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetHistoryStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.HistoryStats(r.Context())
	if err != nil {
		writeError(w, "GetHistoryStats", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Query Helpers ────────────────────────────────────────

func queryStringPtr(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func queryBoolPtr(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b := v == "true"
	return &b
}

func queryStringDefault(r *http.Request, key, defaultVal string) string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	return v
}
