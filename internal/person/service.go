package person

import (
	"log/slog"
	"strings"
	"time"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/core/common/validation"
	"github.com/icastillejo/practice-management/internal/core/i18n"
)

// Repository defines the data access methods for patients. Every mutating
// method persists the given audit entry in the same transaction as the write.
type Repository interface {
	Create(p *Person, actorID int64, entry *audit.Entry) (*Person, error)
	GetByID(scope auth.Scope, id int64) (*Person, error)
	GetByIDWithDeleted(scope auth.Scope, id int64) (*Person, error)
	List(scope auth.Scope) ([]*Person, error)
	NameExists(ownerID int64, name string, excludeID int64) (bool, error)
	Update(p *Person, actorID int64, entry *audit.Entry) (*Person, error)
	SoftDelete(id, actorID int64, at time.Time, entry *audit.Entry) error
	Restore(id int64, entry *audit.Entry) (*Person, error)
}

// Service handles patient business logic.
type Service struct {
	repo    Repository
	caps    *auth.Capabilities
	catalog *i18n.Catalog
	cfg     internal.AppConfig
	logger  *slog.Logger
}

func NewService(repo Repository, caps *auth.Capabilities, catalog *i18n.Catalog, cfg internal.AppConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		caps:    caps,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Service) ListPatients(scope auth.Scope) ([]*Person, error) {
	patients, err := s.repo.List(scope)
	if err != nil {
		s.logger.Error("failed to list patients", "error", err, "user_id", scope.UserID)
		return nil, internal.NewInternalError("could not list patients", err)
	}
	return patients, nil
}

func (s *Service) GetPatient(scope auth.Scope, id int64) (*Person, error) {
	p, err := s.repo.GetByID(scope, id)
	if err != nil {
		s.logger.Error("failed to get patient", "error", err, "patient_id", id)
		return nil, internal.NewInternalError("could not get patient", err)
	}
	if p == nil {
		return nil, internal.NewNotFoundError(s.catalog.T("patient.not_found"), internal.ErrCodePatientNotFound)
	}
	return p, nil
}

// CreatePatient registers a patient owned by the acting practitioner.
func (s *Service) CreatePatient(actor *auth.User, meta internal.RequestMeta, dto CreatePersonDTO) (*Person, string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	name := strings.TrimSpace(dto.Name)

	if appErr := s.validatePatientFields(name, dto.Notes); appErr != nil {
		s.logger.Warn("patient validation failed", "error", appErr, "user_id", actor.ID)
		return nil, "", appErr
	}

	taken, err := s.repo.NameExists(actor.ID, name, 0)
	if err != nil {
		s.logger.Error("failed to check patient name", "error", err, "user_id", actor.ID)
		return nil, "", internal.NewInternalError("could not create patient", err)
	}
	if taken {
		return nil, "", internal.NewConflictError(s.catalog.T("patient.duplicate"), internal.ErrCodeDuplicateName)
	}

	p := &Person{
		UserID:   actor.ID,
		Name:     name,
		Notes:    dto.Notes,
		IsActive: true,
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionCreate, audit.TargetPersons, 0, "patient created").
		WithChanges(nil, map[string]string{"name": name, "notes": dto.Notes}).
		WithRequest(meta)

	created, err := s.repo.Create(p, actor.ID, entry)
	if err != nil {
		s.logger.Error("failed to create patient", "error", err, "user_id", actor.ID)
		return nil, "", internal.NewInternalError("could not create patient", err)
	}

	s.logger.Info("patient created", "patient_id", created.ID, "user_id", actor.ID)
	return created, s.catalog.T("patient.created"), nil
}

// UpdatePatient applies a partial edit; the write and its audit entry either
// both land or neither does.
func (s *Service) UpdatePatient(actor *auth.User, meta internal.RequestMeta, id int64, dto UpdatePersonDTO) (*Person, string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByID(auth.ScopeFor(actor), id)
	if err != nil {
		s.logger.Error("failed to get patient", "error", err, "patient_id", id)
		return nil, "", internal.NewInternalError("could not update patient", err)
	}
	if current == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("patient.not_found"), internal.ErrCodePatientNotFound)
	}

	name := current.Name
	if dto.Name != nil {
		name = strings.TrimSpace(*dto.Name)
	}
	notes := current.Notes
	if dto.Notes != nil {
		notes = *dto.Notes
	}

	if appErr := s.validatePatientFields(name, notes); appErr != nil {
		s.logger.Warn("patient validation failed", "error", appErr, "patient_id", id)
		return nil, "", appErr
	}

	taken, err := s.repo.NameExists(current.UserID, name, id)
	if err != nil {
		s.logger.Error("failed to check patient name", "error", err, "patient_id", id)
		return nil, "", internal.NewInternalError("could not update patient", err)
	}
	if taken {
		return nil, "", internal.NewConflictError(s.catalog.T("patient.duplicate_other"), internal.ErrCodeDuplicateName)
	}

	next := *current
	next.Name = name
	next.Notes = notes

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionUpdate, audit.TargetPersons, id, "patient updated").
		WithChanges(
			map[string]string{"name": current.Name, "notes": current.Notes},
			map[string]string{"name": name, "notes": notes},
		).
		WithRequest(meta)

	updated, err := s.repo.Update(&next, actor.ID, entry)
	if err != nil {
		s.logger.Error("failed to update patient", "error", err, "patient_id", id)
		return nil, "", internal.NewInternalError("could not update patient", err)
	}

	s.logger.Info("patient updated", "patient_id", id, "user_id", actor.ID)
	return updated, s.catalog.T("patient.updated"), nil
}

// DeletePatient soft-deletes a patient and cascades to its sessions. Requires
// the delete-override capability.
func (s *Service) DeletePatient(actor *auth.User, meta internal.RequestMeta, id int64) (string, error) {
	if !s.caps.Can(actor, auth.ActionDeleteOverride) {
		return "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByID(auth.ScopeFor(actor), id)
	if err != nil {
		s.logger.Error("failed to get patient", "error", err, "patient_id", id)
		return "", internal.NewInternalError("could not delete patient", err)
	}
	if current == nil {
		return "", internal.NewNotFoundError(s.catalog.T("patient.not_found"), internal.ErrCodePatientNotFound)
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionSoftDelete, audit.TargetPersons, id, "patient deleted").
		WithChanges(current, nil).
		WithRequest(meta)

	if err := s.repo.SoftDelete(id, actor.ID, time.Now().UTC(), entry); err != nil {
		s.logger.Error("failed to delete patient", "error", err, "patient_id", id)
		return "", internal.NewInternalError("could not delete patient", err)
	}

	s.logger.Info("patient deleted", "patient_id", id, "user_id", actor.ID)
	return s.catalog.T("patient.deleted"), nil
}

// RestorePatient clears the deletion mark on a patient and on the sessions
// that were soft-deleted together with it.
func (s *Service) RestorePatient(actor *auth.User, meta internal.RequestMeta, id int64) (*Person, string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByIDWithDeleted(auth.ScopeFor(actor), id)
	if err != nil {
		s.logger.Error("failed to get patient", "error", err, "patient_id", id)
		return nil, "", internal.NewInternalError("could not restore patient", err)
	}
	if current == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("patient.not_found"), internal.ErrCodePatientNotFound)
	}
	if !current.IsDeleted() {
		return nil, "", internal.NewConflictError(s.catalog.T("patient.not_deleted"), internal.ErrCodePatientNotDeleted)
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionRestore, audit.TargetPersons, id, "patient restored").
		WithRequest(meta)

	restored, err := s.repo.Restore(id, entry)
	if err != nil {
		s.logger.Error("failed to restore patient", "error", err, "patient_id", id)
		return nil, "", internal.NewInternalError("could not restore patient", err)
	}

	s.logger.Info("patient restored", "patient_id", id, "user_id", actor.ID)
	return restored, s.catalog.T("patient.restored"), nil
}

func (s *Service) validatePatientFields(name, notes string) *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", name).
		Required(s.catalog.T("patient.name_required")).
		MaxLength(s.cfg.MaxNameLength, s.catalog.T("patient.name_too_long", s.cfg.MaxNameLength))
	v.Field("notes", notes).
		MaxLength(s.cfg.MaxPersonNotes, s.catalog.T("patient.notes_too_long", s.cfg.MaxPersonNotes))
	return v.Validate()
}
