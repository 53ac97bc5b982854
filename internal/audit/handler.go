package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/icastillejo/practice-management/internal/transport"
	"github.com/icastillejo/practice-management/pkg/logger"
)

type ServiceAPI interface {
	RecentActivity(limit int) ([]Entry, error)
	UserActivity(userID int64, limit int) ([]Entry, error)
	RecordHistory(targetType string, targetID int64, limit int) ([]Entry, error)
	LoginAttempts(userID *int64, days int) ([]Entry, error)
	GetSecuritySummary(days int) (*SecuritySummary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", DefaultRecentLimit)

	entries, err := h.Service.RecentActivity(limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, entries)
}

func (h *Handler) UserActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit := queryInt(r, "limit", DefaultUserLimit)

	entries, err := h.Service.UserActivity(userID, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, entries)
}

func (h *Handler) RecordHistory(w http.ResponseWriter, r *http.Request) {
	targetType := chi.URLParam(r, "target_type")
	switch targetType {
	case TargetPersons, TargetSessions, TargetUsers:
	default:
		h.WriteError(w, http.StatusBadRequest, "unknown target type")
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "target_id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	limit := queryInt(r, "limit", DefaultHistoryLimit)

	entries, err := h.Service.RecordHistory(targetType, targetID, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, entries)
}

func (h *Handler) LoginAttempts(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", DefaultSummaryDays)

	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		userID = &parsed
	}

	entries, err := h.Service.LoginAttempts(userID, days)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, entries)
}

func (h *Handler) SecuritySummary(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", DefaultSummaryDays)

	summary, err := h.Service.GetSecuritySummary(days)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, summary)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
