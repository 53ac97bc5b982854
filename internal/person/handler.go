package person

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
	ListPatients(scope auth.Scope) ([]*Person, error)
	GetPatient(scope auth.Scope, id int64) (*Person, error)
	CreatePatient(actor *auth.User, meta internal.RequestMeta, dto CreatePersonDTO) (*Person, string, error)
	UpdatePatient(actor *auth.User, meta internal.RequestMeta, id int64, dto UpdatePersonDTO) (*Person, string, error)
	DeletePatient(actor *auth.User, meta internal.RequestMeta, id int64) (string, error)
	RestorePatient(actor *auth.User, meta internal.RequestMeta, id int64) (*Person, string, error)
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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	patients, err := h.Service.ListPatients(auth.ScopeFor(user))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, patients)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	p, err := h.Service.GetPatient(auth.ScopeFor(user), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreatePersonDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, message, err := h.Service.CreatePatient(user, internal.RequestMetaFromContext(r.Context()), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusCreated, p, message)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	var dto UpdatePersonDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, message, err := h.Service.UpdatePatient(user, internal.RequestMetaFromContext(r.Context()), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusOK, p, message)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	message, err := h.Service.DeletePatient(user, internal.RequestMetaFromContext(r.Context()), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusOK, nil, message)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	p, message, err := h.Service.RestorePatient(user, internal.RequestMetaFromContext(r.Context()), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteDataMessage(w, http.StatusOK, p, message)
}
