package rest

import (
	"log/slog"
	"net/http"

	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/dashboard"
	"github.com/icastillejo/practice-management/internal/person"
	"github.com/icastillejo/practice-management/internal/session"
	"github.com/icastillejo/practice-management/internal/transport/middleware"
	"github.com/icastillejo/practice-management/internal/transport/swagger"
	"github.com/icastillejo/practice-management/internal/user"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
)

func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, authHandler *auth.Handler, authService *auth.Service, personHandler *person.Handler, sessionHandler *session.Handler, dashboardHandler *dashboard.Handler, auditHandler *audit.Handler, userHandler *user.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db.DB)

	// Get RBAC authorization from auth service
	rbac := authService.RBACAuthorization()

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientInfo)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swagger.DocumentPath)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/register", authHandler.Register)
				sr.Post("/refresh", authHandler.RefreshToken)
			})
		}

		if authHandler != nil {
			// Protected routes that require authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				// Current user and session management
				pr.Get("/me", authHandler.Me)
				pr.Post("/auth/logout", authHandler.Logout)
				pr.Post("/auth/password", authHandler.ChangePassword)

				// Dashboard routes
				if dashboardHandler != nil {
					pr.Get("/dashboard", dashboardHandler.Dashboard)
					pr.Get("/dashboard/stats", dashboardHandler.Stats)
				}

				// Patient routes
				if personHandler != nil {
					pr.Route("/patients", func(er chi.Router) {
						er.Get("/", personHandler.List)

						er.Group(func(mr chi.Router) {
							mr.Use(rbac.RequireMutating())
							mr.Post("/", personHandler.Create)
						})

						// Routes on a single patient check record ownership
						er.Group(func(or chi.Router) {
							or.Use(auth.RequireOwnPatient(db))

							or.Get("/{id}", personHandler.Get)
							if sessionHandler != nil {
								or.Get("/{id}/sessions", sessionHandler.ListForPatient)
							}

							or.Group(func(mr chi.Router) {
								mr.Use(rbac.RequireMutating())
								mr.Patch("/{id}", personHandler.Update)
								mr.Delete("/{id}", personHandler.Delete)
								mr.Post("/{id}/restore", personHandler.Restore)
							})
						})
					})
				}

				// Session routes
				if sessionHandler != nil {
					pr.Route("/sessions", func(er chi.Router) {
						er.Get("/recent", sessionHandler.Recent)

						er.Group(func(mr chi.Router) {
							mr.Use(rbac.RequireMutating())
							mr.Post("/", sessionHandler.Create)
						})

						er.Group(func(or chi.Router) {
							or.Use(auth.RequireOwnSession(db))

							or.Get("/{id}", sessionHandler.Get)

							or.Group(func(mr chi.Router) {
								mr.Use(rbac.RequireMutating())
								mr.Patch("/{id}", sessionHandler.Update)
								mr.Post("/{id}/toggle", sessionHandler.Toggle)
								mr.Delete("/{id}", sessionHandler.Delete)
							})
						})
					})
				}

				// User administration (admin only)
				if userHandler != nil {
					pr.Group(func(ar chi.Router) {
						ar.Use(rbac.RequireAdmin())
						ar.Get("/users", userHandler.List)
						ar.Patch("/users/{id}", userHandler.Update)
					})
				}

				// Audit trail; per-record history is open to mutating roles,
				// everything else is admin only
				if auditHandler != nil {
					pr.Route("/audit", func(ar chi.Router) {
						ar.Group(func(hr chi.Router) {
							hr.Use(rbac.RequireHistoryAccess())
							hr.Get("/records/{target_type}/{target_id}", auditHandler.RecordHistory)
						})

						ar.Group(func(aa chi.Router) {
							aa.Use(rbac.RequireAuditAccess())
							aa.Get("/recent", auditHandler.RecentActivity)
							aa.Get("/logins", auditHandler.LoginAttempts)
							aa.Get("/security", auditHandler.SecuritySummary)
							aa.Get("/users/{user_id}", auditHandler.UserActivity)
						})
					})
				}
			})
		}
	})
}
