package dashboard

import (
	"log/slog"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/core/i18n"
	"github.com/icastillejo/practice-management/internal/person"
	"github.com/icastillejo/practice-management/internal/session"
)

// PersonSource lists the patients visible to a scope, ordered by name.
type PersonSource interface {
	ListPatients(scope auth.Scope) ([]*person.Person, error)
}

// SessionSource reads the visible sessions and their totals.
type SessionSource interface {
	SessionsByState(scope auth.Scope, pending *bool) ([]*session.Session, error)
	Totals(scope auth.Scope) (*session.Totals, error)
}

// Service assembles the read-only dashboard view. It never mutates anything.
type Service struct {
	persons  PersonSource
	sessions SessionSource
	caps     *auth.Capabilities
	catalog  *i18n.Catalog
	logger   *slog.Logger
}

func NewService(persons PersonSource, sessions SessionSource, caps *auth.Capabilities, catalog *i18n.Catalog, logger *slog.Logger) *Service {
	return &Service{
		persons:  persons,
		sessions: sessions,
		caps:     caps,
		catalog:  catalog,
		logger:   logger,
	}
}

// Assemble groups the caller's visible patients with their filtered sessions.
// Patients keep their card in "all" mode even with nothing to show; in
// "pending"/"paid" mode a patient without matching sessions disappears.
func (s *Service) Assemble(user *auth.User, rawFilter string) (*View, error) {
	filter, appErr := parseFilter(rawFilter, s.catalog)
	if appErr != nil {
		return nil, appErr
	}

	scope := auth.ScopeFor(user)

	patients, err := s.persons.ListPatients(scope)
	if err != nil {
		return nil, err
	}

	var pendingFlag *bool
	switch filter {
	case FilterPending:
		t := true
		pendingFlag = &t
	case FilterPaid:
		f := false
		pendingFlag = &f
	}

	sessions, err := s.sessions.SessionsByState(scope, pendingFlag)
	if err != nil {
		return nil, err
	}

	byPerson := make(map[int64][]*session.Session, len(patients))
	for _, sess := range sessions {
		byPerson[sess.PersonID] = append(byPerson[sess.PersonID], sess)
	}

	view := &View{
		Filter:      filter,
		AllowDelete: s.caps.Can(user, auth.ActionDeleteOverride),
		Groups:      make([]*Group, 0, len(patients)),
	}

	for _, p := range patients {
		group := &Group{
			Person:   p,
			Sessions: byPerson[p.ID],
		}
		if group.Sessions == nil {
			if filter != FilterAll {
				continue
			}
			group.Sessions = []*session.Session{}
		}

		for _, sess := range group.Sessions {
			if sess.Pending {
				group.PendingTotal += sess.Price
			} else {
				group.PaidTotal += sess.Price
			}
		}

		view.Total += len(group.Sessions)
		view.Groups = append(view.Groups, group)
	}

	s.logger.Debug("dashboard assembled", "filter", filter, "groups", len(view.Groups), "sessions", view.Total, "user_id", user.ID)
	return view, nil
}

// GetStats reports payment totals over the visible sessions plus the active
// patient count.
func (s *Service) GetStats(scope auth.Scope) (*Stats, error) {
	totals, err := s.sessions.Totals(scope)
	if err != nil {
		return nil, err
	}

	patients, err := s.persons.ListPatients(scope)
	if err != nil {
		return nil, err
	}

	return &Stats{
		PendingTotal:   totals.PendingTotal,
		PaidTotal:      totals.PaidTotal,
		GrandTotal:     totals.GrandTotal,
		ActivePatients: len(patients),
	}, nil
}

func parseFilter(raw string, catalog *i18n.Catalog) (Filter, *internal.AppError) {
	switch Filter(raw) {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterPaid:
		return Filter(raw), nil
	default:
		return "", internal.NewValidationError(catalog.T("dashboard.filter_invalid"), internal.ErrCodeInvalidFilter)
	}
}
