package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/transport"
	"github.com/icastillejo/practice-management/pkg/logger"
)

type ServiceAPI interface {
	GetSession(scope auth.Scope, id int64) (*Session, error)
	ListForPatient(scope auth.Scope, personID int64) ([]*Session, *Totals, error)
	RecentSessions(scope auth.Scope, limit int) ([]*RecentSession, error)
	CreateSession(actor *auth.User, meta internal.RequestMeta, dto CreateSessionDTO) (*Session, string, error)
	UpdateSession(actor *auth.User, meta internal.RequestMeta, id int64, dto UpdateSessionDTO) (*Session, string, error)
	TogglePayment(actor *auth.User, meta internal.RequestMeta, id int64) (*Session, string, error)
	DeleteSession(actor *auth.User, meta internal.RequestMeta, id int64) (string, error)
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

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess, err := h.Service.GetSession(auth.ScopeFor(user), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, sess)
}

// ListForPatient serves the sessions of one patient, newest first, with that
// patient's totals.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	personID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	sessions, totals, err := h.Service.ListForPatient(auth.ScopeFor(user), personID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, &PatientSessions{Sessions: sessions, Totals: totals})
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	recent, err := h.Service.RecentSessions(auth.ScopeFor(user), limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, recent)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateSessionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, message, err := h.Service.CreateSession(user, internal.RequestMetaFromContext(r.Context()), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusCreated, sess, message)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var dto UpdateSessionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, message, err := h.Service.UpdateSession(user, internal.RequestMetaFromContext(r.Context()), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusOK, sess, message)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess, message, err := h.Service.TogglePayment(user, internal.RequestMetaFromContext(r.Context()), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusOK, sess, message)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	message, err := h.Service.DeleteSession(user, internal.RequestMetaFromContext(r.Context()), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusOK, nil, message)
}
