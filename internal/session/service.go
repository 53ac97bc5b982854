package session

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/core/common/validation"
	"github.com/icastillejo/practice-management/internal/core/i18n"
)

const maxListLimit = 100

// Repository defines the data access methods for sessions. Every mutating
// method persists the given audit entry in the same transaction as the write.
type Repository interface {
	Create(s *Session, actorID int64, entry *audit.Entry) (*Session, error)
	GetByID(scope auth.Scope, id int64) (*Session, error)
	ListForPerson(scope auth.Scope, personID int64) ([]*Session, error)
	ListVisible(scope auth.Scope, pending *bool) ([]*Session, error)
	Recent(scope auth.Scope, limit int) ([]*RecentSession, error)
	Totals(scope auth.Scope, personID int64) (*Totals, error)
	Update(s *Session, actorID int64, entry *audit.Entry) (*Session, error)
	SoftDelete(id, actorID int64, at time.Time, entry *audit.Entry) error
	TogglePending(id, actorID int64, entryFor func(oldPending, newPending bool) *audit.Entry) (*Session, error)
	GetPersonRef(scope auth.Scope, personID int64) (*PersonRef, error)
}

// Service handles session business logic.
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

func (s *Service) GetSession(scope auth.Scope, id int64) (*Session, error) {
	sess, err := s.repo.GetByID(scope, id)
	if err != nil {
		s.logger.Error("failed to get session", "error", err, "session_id", id)
		return nil, internal.NewInternalError("could not get session", err)
	}
	if sess == nil {
		return nil, internal.NewNotFoundError(s.catalog.T("session.not_found"), internal.ErrCodeSessionNotFound)
	}
	return sess, nil
}

// ListForPatient returns a patient's visible sessions newest first, with the
// payment totals for that patient.
func (s *Service) ListForPatient(scope auth.Scope, personID int64) ([]*Session, *Totals, error) {
	ref, err := s.repo.GetPersonRef(scope, personID)
	if err != nil {
		s.logger.Error("failed to get patient", "error", err, "patient_id", personID)
		return nil, nil, internal.NewInternalError("could not list sessions", err)
	}
	if ref == nil {
		return nil, nil, internal.NewNotFoundError(s.catalog.T("patient.not_found"), internal.ErrCodePatientNotFound)
	}

	sessions, err := s.repo.ListForPerson(scope, personID)
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err, "patient_id", personID)
		return nil, nil, internal.NewInternalError("could not list sessions", err)
	}

	totals, err := s.repo.Totals(scope, personID)
	if err != nil {
		s.logger.Error("failed to compute totals", "error", err, "patient_id", personID)
		return nil, nil, internal.NewInternalError("could not list sessions", err)
	}

	return sessions, totals, nil
}

// SessionsByState returns the visible sessions newest first, optionally
// narrowed to one payment state.
func (s *Service) SessionsByState(scope auth.Scope, pending *bool) ([]*Session, error) {
	sessions, err := s.repo.ListVisible(scope, pending)
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err, "user_id", scope.UserID)
		return nil, internal.NewInternalError("could not list sessions", err)
	}
	return sessions, nil
}

func (s *Service) RecentSessions(scope auth.Scope, limit int) ([]*RecentSession, error) {
	if limit <= 0 {
		limit = s.cfg.RecentLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	recent, err := s.repo.Recent(scope, limit)
	if err != nil {
		s.logger.Error("failed to list recent sessions", "error", err, "user_id", scope.UserID)
		return nil, internal.NewInternalError("could not list recent sessions", err)
	}
	return recent, nil
}

// Totals aggregates the visible sessions' prices by payment state.
func (s *Service) Totals(scope auth.Scope) (*Totals, error) {
	totals, err := s.repo.Totals(scope, 0)
	if err != nil {
		s.logger.Error("failed to compute totals", "error", err, "user_id", scope.UserID)
		return nil, internal.NewInternalError("could not compute totals", err)
	}
	return totals, nil
}

// CreateSession schedules a session for a live patient. The session inherits
// the patient's owner.
func (s *Service) CreateSession(actor *auth.User, meta internal.RequestMeta, dto CreateSessionDTO) (*Session, string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	pending := true
	if dto.Pending != nil {
		pending = *dto.Pending
	}

	v := validation.NewValidator()
	v.Field("person_id", dto.PersonID).Required(s.catalog.T("session.person_required"))
	v.Field("session_date", dto.SessionDate).Required(s.catalog.T("session.date_required"))

	day, parseErr := ParseDate(dto.SessionDate)
	if dto.SessionDate != "" {
		if parseErr != nil {
			v.Field("session_date", dto.SessionDate).Custom(s.invalidDateRule())
		} else {
			v.Field("session_date", day.Time).
				WithinFutureDays(s.cfg.FutureWindowDays, time.Now().UTC(), s.catalog.T("session.date_too_far", s.cfg.FutureWindowDays))
		}
	}
	v.Field("session_price", dto.Price).Custom(s.priceRule())
	v.Field("notes", dto.Notes).MaxLength(s.cfg.MaxSessionNotes, s.catalog.T("session.notes_too_long", s.cfg.MaxSessionNotes))

	if appErr := v.Validate(); appErr != nil {
		s.logger.Warn("session validation failed", "error", appErr, "user_id", actor.ID)
		return nil, "", appErr
	}

	ref, err := s.repo.GetPersonRef(auth.ScopeFor(actor), dto.PersonID)
	if err != nil {
		s.logger.Error("failed to get patient", "error", err, "patient_id", dto.PersonID)
		return nil, "", internal.NewInternalError("could not create session", err)
	}
	if ref == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("patient.not_found"), internal.ErrCodePatientNotFound)
	}

	sess := &Session{
		PersonID:    ref.ID,
		UserID:      ref.UserID,
		SessionDate: day,
		Price:       *dto.Price,
		Pending:     pending,
		Notes:       dto.Notes,
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionCreate, audit.TargetSessions, 0, "session created").
		WithChanges(nil, map[string]interface{}{
			"person_id":     ref.ID,
			"person_name":   ref.Name,
			"session_date":  day.String(),
			"session_price": *dto.Price,
			"pending":       pending,
		}).
		WithRequest(meta)

	created, err := s.repo.Create(sess, actor.ID, entry)
	if err != nil {
		s.logger.Error("failed to create session", "error", err, "patient_id", ref.ID)
		return nil, "", internal.NewInternalError("could not create session", err)
	}

	s.logger.Info("session created", "session_id", created.ID, "patient_id", ref.ID, "user_id", actor.ID)
	return created, s.catalog.T("session.created"), nil
}

// UpdateSession applies a partial edit to a session. Validation runs against
// the merged result, and either every field lands or none does.
func (s *Service) UpdateSession(actor *auth.User, meta internal.RequestMeta, id int64, dto UpdateSessionDTO) (*Session, string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByID(auth.ScopeFor(actor), id)
	if err != nil {
		s.logger.Error("failed to get session", "error", err, "session_id", id)
		return nil, "", internal.NewInternalError("could not update session", err)
	}
	if current == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("session.not_found"), internal.ErrCodeSessionNotFound)
	}

	day := current.SessionDate
	price := current.Price
	pending := current.Pending
	notes := current.Notes
	if dto.Price != nil {
		price = *dto.Price
	}
	if dto.Pending != nil {
		pending = *dto.Pending
	}
	if dto.Notes != nil {
		notes = *dto.Notes
	}

	v := validation.NewValidator()
	if dto.SessionDate != nil {
		raw := *dto.SessionDate
		v.Field("session_date", raw).Required(s.catalog.T("session.date_required"))
		if raw != "" {
			parsed, parseErr := ParseDate(raw)
			if parseErr != nil {
				v.Field("session_date", raw).Custom(s.invalidDateRule())
			} else {
				day = parsed
			}
		}
	}
	v.Field("session_date", day.Time).
		WithinFutureDays(s.cfg.FutureWindowDays, time.Now().UTC(), s.catalog.T("session.date_too_far", s.cfg.FutureWindowDays))
	v.Field("session_price", &price).Custom(s.priceRule())
	v.Field("notes", notes).MaxLength(s.cfg.MaxSessionNotes, s.catalog.T("session.notes_too_long", s.cfg.MaxSessionNotes))

	if appErr := v.Validate(); appErr != nil {
		s.logger.Warn("session validation failed", "error", appErr, "session_id", id)
		return nil, "", appErr
	}

	next := *current
	next.SessionDate = day
	next.Price = price
	next.Pending = pending
	next.Notes = notes

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionUpdate, audit.TargetSessions, id, "session updated").
		WithChanges(current, &next).
		WithRequest(meta)

	updated, err := s.repo.Update(&next, actor.ID, entry)
	if err != nil {
		s.logger.Error("failed to update session", "error", err, "session_id", id)
		return nil, "", internal.NewInternalError("could not update session", err)
	}

	s.logger.Info("session updated", "session_id", id, "user_id", actor.ID)
	return updated, s.catalog.T("session.updated"), nil
}

// TogglePayment flips the payment state unconditionally and reports the new
// state in the message.
func (s *Service) TogglePayment(actor *auth.User, meta internal.RequestMeta, id int64) (*Session, string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByID(auth.ScopeFor(actor), id)
	if err != nil {
		s.logger.Error("failed to get session", "error", err, "session_id", id)
		return nil, "", internal.NewInternalError("could not toggle session", err)
	}
	if current == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("session.not_found"), internal.ErrCodeSessionNotFound)
	}

	entryFor := func(oldPending, newPending bool) *audit.Entry {
		return audit.NewEntry(audit.ActorID(actor.ID), audit.ActionUpdate, audit.TargetSessions, id, "payment toggled").
			WithChanges(map[string]bool{"pending": oldPending}, map[string]bool{"pending": newPending}).
			WithRequest(meta)
	}

	toggled, err := s.repo.TogglePending(id, actor.ID, entryFor)
	if err != nil {
		s.logger.Error("failed to toggle session", "error", err, "session_id", id)
		return nil, "", internal.NewInternalError("could not toggle session", err)
	}
	if toggled == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("session.not_found"), internal.ErrCodeSessionNotFound)
	}

	key := "session.marked_paid"
	if toggled.Pending {
		key = "session.marked_pending"
	}
	s.logger.Info("session payment toggled", "session_id", id, "pending", toggled.Pending, "user_id", actor.ID)
	return toggled, s.catalog.T(key), nil
}

// DeleteSession soft-deletes a session. A paid session may be deleted by any
// mutating role; deleting a pending one needs the delete-override capability.
func (s *Service) DeleteSession(actor *auth.User, meta internal.RequestMeta, id int64) (string, error) {
	if !s.caps.Can(actor, auth.ActionManageRecords) {
		return "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByID(auth.ScopeFor(actor), id)
	if err != nil {
		s.logger.Error("failed to get session", "error", err, "session_id", id)
		return "", internal.NewInternalError("could not delete session", err)
	}
	if current == nil {
		return "", internal.NewNotFoundError(s.catalog.T("session.not_found"), internal.ErrCodeSessionNotFound)
	}

	if current.Pending && !s.caps.Can(actor, auth.ActionDeleteOverride) {
		return "", internal.NewForbiddenError(s.catalog.T("session.delete_pending"), internal.ErrCodeDeleteNotAllowed)
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionSoftDelete, audit.TargetSessions, id, "session deleted").
		WithChanges(current, nil).
		WithRequest(meta)

	if err := s.repo.SoftDelete(id, actor.ID, time.Now().UTC(), entry); err != nil {
		s.logger.Error("failed to delete session", "error", err, "session_id", id)
		return "", internal.NewInternalError("could not delete session", err)
	}

	s.logger.Info("session deleted", "session_id", id, "user_id", actor.ID)
	return s.catalog.T("session.deleted"), nil
}

func (s *Service) invalidDateRule() func(interface{}) *internal.AppError {
	return func(interface{}) *internal.AppError {
		return internal.NewValidationFieldError("session_date", s.catalog.T("session.date_invalid"), internal.ErrCodeInvalidDate)
	}
}

func (s *Service) priceRule() func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		price, _ := value.(*float64)
		if price == nil {
			return internal.NewValidationFieldError("session_price", s.catalog.T("session.price_required"), internal.ErrCodeInvalidPrice)
		}
		if *price < 0 || *price > s.cfg.MaxPrice {
			return internal.NewValidationFieldError("session_price",
				s.catalog.T("session.price_range", formatBound(0), formatBound(s.cfg.MaxPrice)),
				internal.ErrCodeInvalidPrice)
		}
		return nil
	}
}

// formatBound renders a price bound with thousands separators, the way the
// catalog messages expect ("1,000,000").
func formatBound(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, rest := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, rest = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + rest
}
