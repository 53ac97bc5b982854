package main_test

import (
	"log/slog"
	"os"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/auth"
	auditDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/auditlog"
	personDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/person"
	sessionDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/therapysession"
	userDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/user"
	"github.com/icastillejo/practice-management/internal/core/i18n"
	"github.com/icastillejo/practice-management/internal/dashboard"
	"github.com/icastillejo/practice-management/internal/person"
	personPostgres "github.com/icastillejo/practice-management/internal/person/postgres"
	"github.com/icastillejo/practice-management/internal/session"
	sessionPostgres "github.com/icastillejo/practice-management/internal/session/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Full lifecycle: real services over the real repositories on an in-memory
// database, exercising a patient and their sessions the way the UI does.
var _ = Describe("Session lifecycle", func() {
	var (
		db               *gorm.DB
		personService    *person.Service
		sessionService   *session.Service
		dashboardService *dashboard.Service
		personRepo       person.Repository
		therapist        *auth.User
		meta             internal.RequestMeta
		catalog          *i18n.Catalog
		appCfg           internal.AppConfig
		logger           *slog.Logger
	)

	countAudit := func(targetType string) int64 {
		var n int64
		Expect(db.Model(&auditDatamodel.AuditLog{}).
			Where("target_type = ?", targetType).
			Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	countSessions := func() int64 {
		var n int64
		Expect(db.Model(&sessionDatamodel.TherapySession{}).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	buildServices := func(perms internal.PermissionsConfig) {
		caps := auth.NewCapabilities(perms)
		personRepo = personPostgres.NewPersonRepository(db)
		personService = person.NewService(personRepo, caps, catalog, appCfg, logger)
		sessionService = session.NewService(sessionPostgres.NewSessionRepository(db), caps, catalog, appCfg, logger)
		dashboardService = dashboard.NewService(personService, sessionService, caps, catalog, logger)
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&userDatamodel.User{},
			&personDatamodel.Person{},
			&sessionDatamodel.TherapySession{},
			&auditDatamodel.AuditLog{},
		)
		Expect(err).NotTo(HaveOccurred())

		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		catalog = i18n.MustNew("es")
		appCfg = internal.AppConfig{
			MaxPrice:         1000000,
			MaxNameLength:    100,
			MaxPersonNotes:   1000,
			MaxSessionNotes:  500,
			FutureWindowDays: 7,
			RecentLimit:      10,
		}
		buildServices(internal.PermissionsConfig{
			AllowDelete:         true,
			DeleteOverrideRoles: []string{auth.RoleAdmin, auth.RoleTherapist},
		})

		therapist = &auth.User{ID: 1, Email: "terapeuta@example.com", Role: auth.RoleTherapist, IsActive: true}
		meta = internal.RequestMeta{IPAddress: "127.0.0.1", UserAgent: "lifecycle-test", RequestID: "req-e2e"}
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	It("walks a patient from creation through payment on the dashboard", func() {
		ana, _, err := personService.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Ana García"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ana.Name).To(Equal("Ana García"))

		pending := true
		sess, _, err := sessionService.CreateSession(therapist, meta, session.CreateSessionDTO{
			PersonID:    ana.ID,
			SessionDate: "2026-01-15",
			Price:       floatPtr(100.00),
			Pending:     &pending,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Pending).To(BeTrue())
		Expect(sess.SessionDate.String()).To(Equal("2026-01-15"))

		all, err := dashboardService.Assemble(therapist, "all")
		Expect(err).NotTo(HaveOccurred())
		Expect(all.Groups).To(HaveLen(1))
		Expect(all.Groups[0].Person.Name).To(Equal("Ana García"))
		Expect(all.Groups[0].Sessions).To(HaveLen(1))
		Expect(all.Groups[0].Sessions[0].Pending).To(BeTrue())

		pendingView, err := dashboardService.Assemble(therapist, "pending")
		Expect(err).NotTo(HaveOccurred())
		Expect(pendingView.Groups).To(HaveLen(1))

		paidView, err := dashboardService.Assemble(therapist, "paid")
		Expect(err).NotTo(HaveOccurred())
		Expect(paidView.Groups).To(BeEmpty())

		// Paying moves the card from the pending view to the paid view.
		toggled, message, err := sessionService.TogglePayment(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(toggled.Pending).To(BeFalse())
		Expect(message).To(Equal("Sesión marcada como pagada."))

		paidView, err = dashboardService.Assemble(therapist, "paid")
		Expect(err).NotTo(HaveOccurred())
		Expect(paidView.Groups).To(HaveLen(1))
		Expect(paidView.Groups[0].PaidTotal).To(Equal(100.00))

		pendingView, err = dashboardService.Assemble(therapist, "pending")
		Expect(err).NotTo(HaveOccurred())
		Expect(pendingView.Groups).To(BeEmpty())
	})

	It("returns a session to its original state after two toggles", func() {
		ana, _, err := personService.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Ana García"})
		Expect(err).NotTo(HaveOccurred())

		sess, _, err := sessionService.CreateSession(therapist, meta, session.CreateSessionDTO{
			PersonID:    ana.ID,
			SessionDate: "2026-01-15",
			Price:       floatPtr(100.00),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Pending).To(BeTrue())

		once, _, err := sessionService.TogglePayment(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(once.Pending).To(BeFalse())

		twice, message, err := sessionService.TogglePayment(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(twice.Pending).To(BeTrue())
		Expect(message).To(Equal("Sesión marcada como pendiente."))
	})

	It("hides a deleted patient and their sessions, keeping the rows", func() {
		ana, _, err := personService.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Ana García"})
		Expect(err).NotTo(HaveOccurred())

		_, _, err = sessionService.CreateSession(therapist, meta, session.CreateSessionDTO{
			PersonID:    ana.ID,
			SessionDate: "2026-01-15",
			Price:       floatPtr(100.00),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = personService.DeletePatient(therapist, meta, ana.ID)
		Expect(err).NotTo(HaveOccurred())

		all, err := dashboardService.Assemble(therapist, "all")
		Expect(err).NotTo(HaveOccurred())
		Expect(all.Groups).To(BeEmpty())

		kept, err := personRepo.GetByIDWithDeleted(auth.ScopeFor(therapist), ana.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(kept).NotTo(BeNil())
		Expect(kept.IsDeleted()).To(BeTrue())

		Expect(countSessions()).To(Equal(int64(1)))
	})

	It("enforces the configured delete policy on pending sessions", func() {
		// Only admins hold the override here; the therapist can still
		// delete paid sessions.
		buildServices(internal.PermissionsConfig{
			AllowDelete:         true,
			DeleteOverrideRoles: []string{auth.RoleAdmin},
		})

		ana, _, err := personService.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Ana García"})
		Expect(err).NotTo(HaveOccurred())

		sess, _, err := sessionService.CreateSession(therapist, meta, session.CreateSessionDTO{
			PersonID:    ana.ID,
			SessionDate: "2026-01-15",
			Price:       floatPtr(100.00),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = sessionService.DeleteSession(therapist, meta, sess.ID)
		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))

		_, _, err = sessionService.TogglePayment(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = sessionService.DeleteSession(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("writes exactly one audit row per successful mutation and none on failure", func() {
		ana, _, err := personService.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Ana García"})
		Expect(err).NotTo(HaveOccurred())
		Expect(countAudit(audit.TargetPersons)).To(Equal(int64(1)))

		sess, _, err := sessionService.CreateSession(therapist, meta, session.CreateSessionDTO{
			PersonID:    ana.ID,
			SessionDate: "2026-01-15",
			Price:       floatPtr(100.00),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(countAudit(audit.TargetSessions)).To(Equal(int64(1)))

		_, _, err = sessionService.TogglePayment(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(countAudit(audit.TargetSessions)).To(Equal(int64(2)))

		notes := "sesión inicial"
		_, _, err = sessionService.UpdateSession(therapist, meta, sess.ID, session.UpdateSessionDTO{Notes: &notes})
		Expect(err).NotTo(HaveOccurred())
		Expect(countAudit(audit.TargetSessions)).To(Equal(int64(3)))

		_, err = sessionService.DeleteSession(therapist, meta, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(countAudit(audit.TargetSessions)).To(Equal(int64(4)))
	})

	It("persists nothing when a session fails validation", func() {
		ana, _, err := personService.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Ana García"})
		Expect(err).NotTo(HaveOccurred())

		_, _, err = sessionService.CreateSession(therapist, meta, session.CreateSessionDTO{
			PersonID:    ana.ID,
			SessionDate: "2026-01-15",
			Price:       floatPtr(-5),
		})
		Expect(err).To(HaveOccurred())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))

		Expect(countSessions()).To(BeZero())
		Expect(countAudit(audit.TargetSessions)).To(BeZero())
	})
})

func floatPtr(v float64) *float64 { return &v }
