package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/transport"
	"github.com/icastillejo/practice-management/pkg/logger"
)

type ServiceAPI interface {
	Assemble(user *auth.User, rawFilter string) (*View, error)
	GetStats(scope auth.Scope) (*Stats, error)
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

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.Service.Assemble(user, r.URL.Query().Get("filter"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, view)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.Service.GetStats(auth.ScopeFor(user))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteData(w, http.StatusOK, stats)
}
