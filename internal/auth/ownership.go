package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
)

// RequireRecordAccess builds middleware that resolves the owner of the
// routed record with a raw lookup and applies the caller's scope: admins
// and viewers see everything, therapists only their own records. Missing
// records fall through so the handler can answer with its localized
// not-found message.
func RequireRecordAccess(db *sqlx.DB, ownerQuery string) func(next http.Handler) http.Handler {
	query := db.Rebind(ownerQuery)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok || u == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if ScopeFor(u).SeesAll() {
				next.ServeHTTP(w, r)
				return
			}

			idStr := chi.URLParam(r, "id")
			if idStr == "" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				http.Error(w, "invalid id", http.StatusBadRequest)
				return
			}

			var ownerID int64
			err = db.GetContext(r.Context(), &ownerID, query, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if ownerID != u.ID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnPatient checks ownership of the routed patient. Deleted rows
// still count as owned so restore stays reachable.
func RequireOwnPatient(db *sqlx.DB) func(next http.Handler) http.Handler {
	return RequireRecordAccess(db, "SELECT user_id FROM persons WHERE id = ?")
}

func RequireOwnSession(db *sqlx.DB) func(next http.Handler) http.Handler {
	return RequireRecordAccess(db, "SELECT user_id FROM therapy_sessions WHERE id = ?")
}
