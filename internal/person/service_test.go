package person_test

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/core/i18n"
	"github.com/icastillejo/practice-management/internal/person"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPersonService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Person Service Suite")
}

// MockRepository implements person.Repository for testing
type MockRepository struct {
	patients   map[int64]*person.Person
	entries    []*audit.Entry
	nextID     int64
	shouldFail bool
	failError  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		patients: make(map[int64]*person.Person),
		nextID:   1,
	}
}

func (m *MockRepository) Create(p *person.Person, actorID int64, entry *audit.Entry) (*person.Person, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	stored := *p
	stored.ID = m.nextID
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	m.nextID++
	m.patients[stored.ID] = &stored

	entry.TargetID = stored.ID
	m.entries = append(m.entries, entry)
	return &stored, nil
}

func (m *MockRepository) GetByID(scope auth.Scope, id int64) (*person.Person, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	p, exists := m.patients[id]
	if !exists || p.IsDeleted() {
		return nil, nil
	}
	if !scope.SeesAll() && p.UserID != scope.UserID {
		return nil, nil
	}
	return p, nil
}

func (m *MockRepository) GetByIDWithDeleted(scope auth.Scope, id int64) (*person.Person, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	p, exists := m.patients[id]
	if !exists {
		return nil, nil
	}
	if !scope.SeesAll() && p.UserID != scope.UserID {
		return nil, nil
	}
	return p, nil
}

func (m *MockRepository) List(scope auth.Scope) ([]*person.Person, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var result []*person.Person
	for _, p := range m.patients {
		if p.IsDeleted() {
			continue
		}
		if !scope.SeesAll() && p.UserID != scope.UserID {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (m *MockRepository) NameExists(ownerID int64, name string, excludeID int64) (bool, error) {
	if m.shouldFail {
		return false, m.failError
	}
	for _, p := range m.patients {
		if p.ID == excludeID || p.IsDeleted() {
			continue
		}
		if p.UserID == ownerID && p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) Update(p *person.Person, actorID int64, entry *audit.Entry) (*person.Person, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	stored := *p
	stored.UpdatedAt = time.Now().UTC()
	m.patients[stored.ID] = &stored

	m.entries = append(m.entries, entry)
	return &stored, nil
}

func (m *MockRepository) SoftDelete(id, actorID int64, at time.Time, entry *audit.Entry) error {
	if m.shouldFail {
		return m.failError
	}
	if p, exists := m.patients[id]; exists {
		p.DeletedAt = &at
		p.DeletedByID = &actorID
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockRepository) Restore(id int64, entry *audit.Entry) (*person.Person, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	p, exists := m.patients[id]
	if !exists {
		return nil, nil
	}
	p.DeletedAt = nil
	p.DeletedByID = nil
	m.entries = append(m.entries, entry)
	return p, nil
}

// Helper methods for testing
func (m *MockRepository) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

func (m *MockRepository) AddPatient(p *person.Person) {
	m.patients[p.ID] = p
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
}

func (m *MockRepository) LastEntry() *audit.Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

var _ = Describe("Person Service", func() {
	var (
		mockRepo  *MockRepository
		service   *person.Service
		logger    *slog.Logger
		catalog   *i18n.Catalog
		cfg       internal.AppConfig
		therapist *auth.User
		admin     *auth.User
		viewer    *auth.User
		meta      internal.RequestMeta
	)

	BeforeEach(func() {
		mockRepo = NewMockRepository()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		catalog = i18n.MustNew("es")
		cfg = internal.AppConfig{
			MaxNameLength:  100,
			MaxPersonNotes: 1000,
		}
		caps := auth.NewCapabilities(internal.PermissionsConfig{
			AllowDelete:         true,
			DeleteOverrideRoles: []string{auth.RoleAdmin, auth.RoleTherapist},
		})
		service = person.NewService(mockRepo, caps, catalog, cfg, logger)

		therapist = &auth.User{ID: 1, Email: "ana@example.com", Role: auth.RoleTherapist, IsActive: true}
		admin = &auth.User{ID: 2, Email: "admin@example.com", Role: auth.RoleAdmin, IsActive: true}
		viewer = &auth.User{ID: 3, Email: "viewer@example.com", Role: auth.RoleViewer, IsActive: true}
		meta = internal.RequestMeta{IPAddress: "127.0.0.1", UserAgent: "test-agent", RequestID: "req-123"}
	})

	Describe("CreatePatient", func() {
		Context("with a valid payload", func() {
			It("should create the patient owned by the actor", func() {
				created, message, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{
					Name:  "Juan García",
					Notes: "Derivado por el Dr. Pérez",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(created).NotTo(BeNil())
				Expect(created.ID).NotTo(BeZero())
				Expect(created.UserID).To(Equal(therapist.ID))
				Expect(created.Name).To(Equal("Juan García"))
				Expect(created.Notes).To(Equal("Derivado por el Dr. Pérez"))
				Expect(created.IsActive).To(BeTrue())
				Expect(message).To(Equal("Paciente agregado correctamente."))
			})

			It("should trim surrounding whitespace from the name", func() {
				created, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{
					Name: "  María López  ",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(created.Name).To(Equal("María López"))
			})

			It("should record a CREATE audit entry with the request metadata", func() {
				created, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{
					Name:  "Juan García",
					Notes: "nota",
				})
				Expect(err).NotTo(HaveOccurred())

				entry := mockRepo.LastEntry()
				Expect(entry).NotTo(BeNil())
				Expect(entry.Action).To(Equal(audit.ActionCreate))
				Expect(entry.TargetType).To(Equal(audit.TargetPersons))
				Expect(entry.TargetID).To(Equal(created.ID))
				Expect(entry.UserID).NotTo(BeNil())
				Expect(*entry.UserID).To(Equal(therapist.ID))
				Expect(entry.OldValues).To(BeEmpty())
				Expect(entry.NewValues).To(ContainSubstring(`"name":"Juan García"`))
				Expect(entry.IPAddress).To(Equal("127.0.0.1"))
				Expect(entry.RequestID).To(Equal("req-123"))
			})
		})

		Context("when the name is missing", func() {
			It("should return a validation error", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: ""})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
				Expect(appErr.Message).To(Equal("El nombre es requerido."))
			})

			It("should reject a whitespace-only name", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "   "})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Message).To(Equal("El nombre es requerido."))
			})
		})

		Context("when the name length is at the edges", func() {
			It("should accept a single-character name", func() {
				created, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "J"})
				Expect(err).NotTo(HaveOccurred())
				Expect(created.Name).To(Equal("J"))
			})

			It("should accept a name at the configured maximum", func() {
				created, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{
					Name: strings.Repeat("a", 100),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(created.Name).To(HaveLen(100))
			})

			It("should reject a name longer than the configured maximum", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{
					Name: strings.Repeat("a", 101),
				})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
				Expect(appErr.Message).To(Equal("El nombre es demasiado largo (máximo 100 caracteres)."))
			})
		})

		Context("when the notes exceed the configured maximum", func() {
			It("should return a validation error", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{
					Name:  "Juan García",
					Notes: strings.Repeat("n", 1001),
				})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Message).To(Equal("Las notas son demasiado largas (máximo 1000 caracteres)."))
			})
		})

		Context("when the name is already taken", func() {
			BeforeEach(func() {
				mockRepo.AddPatient(&person.Person{ID: 10, UserID: therapist.ID, Name: "Juan García", IsActive: true})
			})

			It("should return a conflict", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Juan García"})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeConflict))
				Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateName))
				Expect(appErr.Message).To(Equal("Ya existe un paciente con ese nombre."))
			})

			It("should match the trimmed name", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: " Juan García "})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateName))
			})
		})

		Context("when another practitioner has a patient with the same name", func() {
			BeforeEach(func() {
				mockRepo.AddPatient(&person.Person{ID: 10, UserID: 99, Name: "Juan García", IsActive: true})
			})

			It("should create the patient", func() {
				created, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Juan García"})
				Expect(err).NotTo(HaveOccurred())
				Expect(created.UserID).To(Equal(therapist.ID))
			})
		})

		Context("when a deleted patient holds the same name", func() {
			BeforeEach(func() {
				deletedAt := time.Now().UTC()
				mockRepo.AddPatient(&person.Person{
					ID: 10, UserID: therapist.ID, Name: "Juan García", DeletedAt: &deletedAt,
				})
			})

			It("should create the patient", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Juan García"})
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when the actor is a viewer", func() {
			It("should return forbidden without touching the repository", func() {
				_, _, err := service.CreatePatient(viewer, meta, person.CreatePersonDTO{Name: "Juan García"})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
				Expect(appErr.Code).To(Equal(internal.ErrCodePermissionDenied))
				Expect(mockRepo.entries).To(BeEmpty())
			})
		})

		Context("when the repository fails", func() {
			BeforeEach(func() {
				mockRepo.SetShouldFail(true, errors.New("database error"))
			})

			It("should return an internal error", func() {
				_, _, err := service.CreatePatient(therapist, meta, person.CreatePersonDTO{Name: "Juan García"})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
			})
		})
	})

	Describe("UpdatePatient", func() {
		BeforeEach(func() {
			mockRepo.AddPatient(&person.Person{
				ID: 5, UserID: therapist.ID, Name: "Juan García", Notes: "nota original", IsActive: true,
			})
		})

		Context("with a partial payload", func() {
			It("should keep the stored name when only notes change", func() {
				notes := "nota nueva"
				updated, message, err := service.UpdatePatient(therapist, meta, 5, person.UpdatePersonDTO{Notes: &notes})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Name).To(Equal("Juan García"))
				Expect(updated.Notes).To(Equal("nota nueva"))
				Expect(message).To(Equal("Paciente actualizado correctamente."))
			})

			It("should keep the stored notes when only the name changes", func() {
				name := "Juan G. García"
				updated, _, err := service.UpdatePatient(therapist, meta, 5, person.UpdatePersonDTO{Name: &name})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Name).To(Equal("Juan G. García"))
				Expect(updated.Notes).To(Equal("nota original"))
			})
		})

		It("should record old and new values in the audit entry", func() {
			name := "Juan Renombrado"
			_, _, err := service.UpdatePatient(therapist, meta, 5, person.UpdatePersonDTO{Name: &name})
			Expect(err).NotTo(HaveOccurred())

			entry := mockRepo.LastEntry()
			Expect(entry).NotTo(BeNil())
			Expect(entry.Action).To(Equal(audit.ActionUpdate))
			Expect(entry.TargetID).To(Equal(int64(5)))
			Expect(entry.OldValues).To(ContainSubstring("Juan García"))
			Expect(entry.NewValues).To(ContainSubstring("Juan Renombrado"))
		})

		Context("when renaming to another patient's name", func() {
			BeforeEach(func() {
				mockRepo.AddPatient(&person.Person{ID: 6, UserID: therapist.ID, Name: "María López", IsActive: true})
			})

			It("should return a conflict", func() {
				name := "María López"
				_, _, err := service.UpdatePatient(therapist, meta, 5, person.UpdatePersonDTO{Name: &name})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateName))
				Expect(appErr.Message).To(Equal("Ya existe otro paciente con ese nombre."))
			})
		})

		Context("when the patient keeps its own name", func() {
			It("should not report a conflict", func() {
				name := "Juan García"
				notes := "solo cambian las notas"
				_, _, err := service.UpdatePatient(therapist, meta, 5, person.UpdatePersonDTO{Name: &name, Notes: &notes})
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when the patient does not exist", func() {
			It("should return not found", func() {
				notes := "nota"
				_, _, err := service.UpdatePatient(therapist, meta, 999, person.UpdatePersonDTO{Notes: &notes})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotFound))
				Expect(appErr.Message).To(Equal("Paciente no encontrado."))
			})
		})

		Context("when a therapist edits another practitioner's patient", func() {
			BeforeEach(func() {
				mockRepo.AddPatient(&person.Person{ID: 7, UserID: 99, Name: "Ajeno", IsActive: true})
			})

			It("should return not found", func() {
				notes := "nota"
				_, _, err := service.UpdatePatient(therapist, meta, 7, person.UpdatePersonDTO{Notes: &notes})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotFound))
			})

			It("should let an admin edit it", func() {
				notes := "nota del admin"
				updated, _, err := service.UpdatePatient(admin, meta, 7, person.UpdatePersonDTO{Notes: &notes})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Notes).To(Equal("nota del admin"))
			})
		})

		Context("when the actor is a viewer", func() {
			It("should return forbidden", func() {
				notes := "nota"
				_, _, err := service.UpdatePatient(viewer, meta, 5, person.UpdatePersonDTO{Notes: &notes})
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePermissionDenied))
			})
		})
	})

	Describe("DeletePatient", func() {
		BeforeEach(func() {
			mockRepo.AddPatient(&person.Person{
				ID: 5, UserID: therapist.ID, Name: "Juan García", IsActive: true,
			})
		})

		It("should soft delete the patient", func() {
			message, err := service.DeletePatient(therapist, meta, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(message).To(Equal("Paciente eliminado correctamente."))
			Expect(mockRepo.patients[5].IsDeleted()).To(BeTrue())
		})

		It("should record a SOFT_DELETE audit entry with the prior state", func() {
			_, err := service.DeletePatient(therapist, meta, 5)
			Expect(err).NotTo(HaveOccurred())

			entry := mockRepo.LastEntry()
			Expect(entry).NotTo(BeNil())
			Expect(entry.Action).To(Equal(audit.ActionSoftDelete))
			Expect(entry.TargetType).To(Equal(audit.TargetPersons))
			Expect(entry.OldValues).To(ContainSubstring("Juan García"))
			Expect(entry.NewValues).To(BeEmpty())
		})

		Context("when the actor is a viewer", func() {
			It("should return forbidden", func() {
				_, err := service.DeletePatient(viewer, meta, 5)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePermissionDenied))
			})
		})

		Context("when the deployment disables deletion", func() {
			BeforeEach(func() {
				caps := auth.NewCapabilities(internal.PermissionsConfig{AllowDelete: false})
				service = person.NewService(mockRepo, caps, catalog, cfg, logger)
			})

			It("should refuse even an admin", func() {
				_, err := service.DeletePatient(admin, meta, 5)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
			})
		})

		Context("when the patient does not exist", func() {
			It("should return not found", func() {
				_, err := service.DeletePatient(therapist, meta, 999)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotFound))
			})
		})
	})

	Describe("RestorePatient", func() {
		Context("when the patient is deleted", func() {
			BeforeEach(func() {
				deletedAt := time.Now().UTC()
				deletedBy := therapist.ID
				mockRepo.AddPatient(&person.Person{
					ID: 5, UserID: therapist.ID, Name: "Juan García",
					DeletedAt: &deletedAt, DeletedByID: &deletedBy,
				})
			})

			It("should clear the deletion mark", func() {
				restored, message, err := service.RestorePatient(therapist, meta, 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(restored.IsDeleted()).To(BeFalse())
				Expect(restored.DeletedByID).To(BeNil())
				Expect(message).To(Equal("Paciente restaurado correctamente."))
			})

			It("should record a RESTORE audit entry", func() {
				_, _, err := service.RestorePatient(therapist, meta, 5)
				Expect(err).NotTo(HaveOccurred())

				entry := mockRepo.LastEntry()
				Expect(entry).NotTo(BeNil())
				Expect(entry.Action).To(Equal(audit.ActionRestore))
				Expect(entry.TargetID).To(Equal(int64(5)))
			})
		})

		Context("when the patient is not deleted", func() {
			BeforeEach(func() {
				mockRepo.AddPatient(&person.Person{ID: 5, UserID: therapist.ID, Name: "Juan García", IsActive: true})
			})

			It("should return a conflict", func() {
				_, _, err := service.RestorePatient(therapist, meta, 5)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeConflict))
				Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotDeleted))
				Expect(appErr.Message).To(Equal("Este paciente no está eliminado."))
			})
		})

		Context("when the patient does not exist", func() {
			It("should return not found", func() {
				_, _, err := service.RestorePatient(therapist, meta, 999)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotFound))
			})
		})

		Context("when the actor is a viewer", func() {
			It("should return forbidden", func() {
				_, _, err := service.RestorePatient(viewer, meta, 5)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePermissionDenied))
			})
		})
	})

	Describe("GetPatient", func() {
		BeforeEach(func() {
			mockRepo.AddPatient(&person.Person{ID: 5, UserID: therapist.ID, Name: "Juan García", IsActive: true})
			mockRepo.AddPatient(&person.Person{ID: 6, UserID: 99, Name: "Ajeno", IsActive: true})
		})

		It("should return an owned patient", func() {
			p, err := service.GetPatient(auth.ScopeFor(therapist), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("Juan García"))
		})

		It("should hide other practitioners' patients from a therapist", func() {
			_, err := service.GetPatient(auth.ScopeFor(therapist), 6)
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotFound))
		})

		It("should let an admin see any patient", func() {
			p, err := service.GetPatient(auth.ScopeFor(admin), 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("Ajeno"))
		})

		It("should let a viewer see any patient", func() {
			p, err := service.GetPatient(auth.ScopeFor(viewer), 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("Ajeno"))
		})

		It("should treat a deleted patient as not found", func() {
			deletedAt := time.Now().UTC()
			mockRepo.patients[5].DeletedAt = &deletedAt

			_, err := service.GetPatient(auth.ScopeFor(therapist), 5)
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePatientNotFound))
		})
	})

	Describe("ListPatients", func() {
		BeforeEach(func() {
			deletedAt := time.Now().UTC()
			mockRepo.AddPatient(&person.Person{ID: 1, UserID: therapist.ID, Name: "Juan García", IsActive: true})
			mockRepo.AddPatient(&person.Person{ID: 2, UserID: therapist.ID, Name: "María López", IsActive: true})
			mockRepo.AddPatient(&person.Person{ID: 3, UserID: 99, Name: "Ajeno", IsActive: true})
			mockRepo.AddPatient(&person.Person{ID: 4, UserID: therapist.ID, Name: "Borrado", DeletedAt: &deletedAt})
		})

		It("should return only the therapist's live patients", func() {
			patients, err := service.ListPatients(auth.ScopeFor(therapist))
			Expect(err).NotTo(HaveOccurred())
			Expect(patients).To(HaveLen(2))

			names := make([]string, len(patients))
			for i, p := range patients {
				names[i] = p.Name
			}
			Expect(names).To(ConsistOf("Juan García", "María López"))
		})

		It("should return every live patient for an admin", func() {
			patients, err := service.ListPatients(auth.ScopeFor(admin))
			Expect(err).NotTo(HaveOccurred())
			Expect(patients).To(HaveLen(3))
		})

		Context("when the repository fails", func() {
			BeforeEach(func() {
				mockRepo.SetShouldFail(true, errors.New("database error"))
			})

			It("should return an internal error", func() {
				patients, err := service.ListPatients(auth.ScopeFor(therapist))
				Expect(err).To(HaveOccurred())
				Expect(patients).To(BeNil())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
			})
		})
	})
})
