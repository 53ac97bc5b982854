package auth

import (
	"log/slog"
	"net/http"
)

// RBACAuthorization gates routes on the capability table. Handlers behind
// these middlewares can assume the actor's role already allows the action.
type RBACAuthorization struct {
	caps   *Capabilities
	logger *slog.Logger
}

func NewRBACAuthorization(caps *Capabilities, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		caps:   caps,
		logger: logger,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || user == nil {
			ra.logger.Warn("authorization check failed: user not found in context")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !ra.caps.Can(user, action) {
			ra.logger.WarnContext(r.Context(), "access denied: insufficient role",
				"user_id", user.ID,
				"role", user.Role,
				"action", action)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) Middleware(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, action)
	}
}

// RequireMutating allows admins and therapists through; viewers are
// read-only everywhere.
func (ra *RBACAuthorization) RequireMutating() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !ra.caps.Can(user, ActionManageRecords) {
				ra.logger.WarnContext(r.Context(), "access denied: mutating action requires therapist or admin",
					"user_id", user.ID,
					"role", user.Role)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !ra.caps.Can(user, ActionManageUsers) {
				ra.logger.WarnContext(r.Context(), "access denied: admin required",
					"user_id", user.ID,
					"role", user.Role)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireHistoryAccess lets the roles that can change records read the
// change history of those records; viewers stay out.
func (ra *RBACAuthorization) RequireHistoryAccess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !ra.caps.Can(user, ActionViewHistory) {
				ra.logger.WarnContext(r.Context(), "access denied: record history requires a mutating role",
					"user_id", user.ID,
					"role", user.Role)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireAuditAccess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !ra.caps.Can(user, ActionViewAudit) {
				ra.logger.WarnContext(r.Context(), "access denied: audit access requires admin",
					"user_id", user.ID,
					"role", user.Role)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
