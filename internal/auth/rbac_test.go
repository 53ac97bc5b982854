package auth_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/auth"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RBAC Authorization", func() {
	var (
		rbac *auth.RBACAuthorization
		caps *auth.Capabilities
	)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(u *auth.User) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/audit/records/persons/1", nil)
		if u != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), u))
		}
		return req
	}

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		caps = auth.NewCapabilities(internal.PermissionsConfig{
			AllowDelete:         true,
			DeleteOverrideRoles: []string{auth.RoleAdmin},
		})
		rbac = auth.NewRBACAuthorization(caps, slogger)
	})

	Describe("RequireHistoryAccess", func() {
		var gated http.Handler

		BeforeEach(func() {
			gated = rbac.RequireHistoryAccess()(okHandler)
		})

		It("should let an admin through", func() {
			rec := httptest.NewRecorder()
			gated.ServeHTTP(rec, request(&auth.User{ID: 1, Role: auth.RoleAdmin, IsActive: true}))
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should let a therapist through", func() {
			rec := httptest.NewRecorder()
			gated.ServeHTTP(rec, request(&auth.User{ID: 2, Role: auth.RoleTherapist, IsActive: true}))
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should refuse a viewer", func() {
			rec := httptest.NewRecorder()
			gated.ServeHTTP(rec, request(&auth.User{ID: 3, Role: auth.RoleViewer, IsActive: true}))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("should refuse an anonymous request", func() {
			rec := httptest.NewRecorder()
			gated.ServeHTTP(rec, request(nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("RequireAuditAccess", func() {
		It("should stay admin only", func() {
			gated := rbac.RequireAuditAccess()(okHandler)

			rec := httptest.NewRecorder()
			gated.ServeHTTP(rec, request(&auth.User{ID: 1, Role: auth.RoleAdmin, IsActive: true}))
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = httptest.NewRecorder()
			gated.ServeHTTP(rec, request(&auth.User{ID: 2, Role: auth.RoleTherapist, IsActive: true}))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("Capabilities", func() {
		It("should grant record history to admins and therapists only", func() {
			Expect(caps.Can(&auth.User{Role: auth.RoleAdmin, IsActive: true}, auth.ActionViewHistory)).To(BeTrue())
			Expect(caps.Can(&auth.User{Role: auth.RoleTherapist, IsActive: true}, auth.ActionViewHistory)).To(BeTrue())
			Expect(caps.Can(&auth.User{Role: auth.RoleViewer, IsActive: true}, auth.ActionViewHistory)).To(BeFalse())
			Expect(caps.Can(&auth.User{Role: auth.RoleAdmin, IsActive: false}, auth.ActionViewHistory)).To(BeFalse())
		})
	})
})
