package postgres

import (
	"time"

	"github.com/icastillejo/practice-management/internal/audit"
	auditpg "github.com/icastillejo/practice-management/internal/audit/postgres"
	"github.com/icastillejo/practice-management/internal/auth"
	personDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/person"
	sessionDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/therapysession"
	"github.com/icastillejo/practice-management/internal/session"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) session.Repository {
	return &SessionRepository{db: db}
}

// scoped qualifies the owner column so joined queries stay unambiguous.
func scoped(q *gorm.DB, scope auth.Scope) *gorm.DB {
	if scope.SeesAll() {
		return q
	}
	return q.Where("therapy_sessions.user_id = ?", scope.UserID)
}

func (r *SessionRepository) Create(s *session.Session, actorID int64, entry *audit.Entry) (*session.Session, error) {
	row := session.ToDataModel(s)
	row.CreatedByID = &actorID

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if entry != nil {
			entry.TargetID = row.ID
		}
		return auditpg.InsertTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	return session.FromDataModel(row), nil
}

func (r *SessionRepository) GetByID(scope auth.Scope, id int64) (*session.Session, error) {
	var row sessionDatamodel.TherapySession
	err := scoped(r.db.Where("id = ? AND deleted_at IS NULL", id), scope).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return session.FromDataModel(&row), nil
}

func (r *SessionRepository) ListForPerson(scope auth.Scope, personID int64) ([]*session.Session, error) {
	var rows []*sessionDatamodel.TherapySession
	err := scoped(r.db.Where("person_id = ? AND deleted_at IS NULL", personID), scope).
		Order("session_date DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return session.FromDataModelSlice(rows), nil
}

func (r *SessionRepository) ListVisible(scope auth.Scope, pending *bool) ([]*session.Session, error) {
	q := r.db.Where("deleted_at IS NULL")
	if pending != nil {
		q = q.Where("pending = ?", *pending)
	}

	var rows []*sessionDatamodel.TherapySession
	err := scoped(q, scope).Order("session_date DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return session.FromDataModelSlice(rows), nil
}

type recentRow struct {
	ID           int64
	PersonID     int64
	PersonName   string
	SessionDate  time.Time
	SessionPrice float64
	Pending      bool
	CreatedAt    time.Time
}

func (r *SessionRepository) Recent(scope auth.Scope, limit int) ([]*session.RecentSession, error) {
	var rows []recentRow
	q := r.db.Table("therapy_sessions").
		Select("therapy_sessions.id, therapy_sessions.person_id, persons.name AS person_name, "+
			"therapy_sessions.session_date, therapy_sessions.session_price, therapy_sessions.pending, "+
			"therapy_sessions.created_at").
		Joins("JOIN persons ON persons.id = therapy_sessions.person_id").
		Where("therapy_sessions.deleted_at IS NULL AND persons.deleted_at IS NULL")

	err := scoped(q, scope).
		Order("therapy_sessions.session_date DESC, therapy_sessions.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	recent := make([]*session.RecentSession, len(rows))
	for i, row := range rows {
		recent[i] = &session.RecentSession{
			ID:          row.ID,
			PersonID:    row.PersonID,
			PersonName:  row.PersonName,
			SessionDate: session.Date{Time: row.SessionDate},
			Price:       row.SessionPrice,
			Pending:     row.Pending,
			CreatedAt:   row.CreatedAt,
		}
	}
	return recent, nil
}

func (r *SessionRepository) Totals(scope auth.Scope, personID int64) (*session.Totals, error) {
	var row struct {
		PendingTotal float64
		PaidTotal    float64
	}

	q := r.db.Model(&sessionDatamodel.TherapySession{}).
		Select("COALESCE(SUM(CASE WHEN pending THEN session_price ELSE 0 END), 0) AS pending_total, " +
			"COALESCE(SUM(CASE WHEN pending THEN 0 ELSE session_price END), 0) AS paid_total").
		Where("deleted_at IS NULL")
	if personID > 0 {
		q = q.Where("person_id = ?", personID)
	}

	if err := scoped(q, scope).Scan(&row).Error; err != nil {
		return nil, err
	}

	return &session.Totals{
		PendingTotal: row.PendingTotal,
		PaidTotal:    row.PaidTotal,
		GrandTotal:   row.PendingTotal + row.PaidTotal,
	}, nil
}

func (r *SessionRepository) Update(s *session.Session, actorID int64, entry *audit.Entry) (*session.Session, error) {
	var row sessionDatamodel.TherapySession
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&sessionDatamodel.TherapySession{}).
			Where("id = ? AND deleted_at IS NULL", s.ID).
			Updates(map[string]interface{}{
				"session_date":  s.SessionDate.Time,
				"session_price": s.Price,
				"pending":       s.Pending,
				"notes":         s.Notes,
				"updated_by_id": actorID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := auditpg.InsertTx(tx, entry); err != nil {
			return err
		}
		return tx.Where("id = ?", s.ID).First(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return session.FromDataModel(&row), nil
}

// SoftDelete stamps the session once; re-deleting keeps the original
// timestamp.
func (r *SessionRepository) SoftDelete(id, actorID int64, at time.Time, entry *audit.Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var row sessionDatamodel.TherapySession
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		if !row.MarkDeleted(actorID, at) {
			return nil
		}

		changes := map[string]interface{}{
			"deleted_at":    row.DeletedAt,
			"deleted_by_id": row.DeletedByID,
		}
		err := tx.Model(&sessionDatamodel.TherapySession{}).Where("id = ?", id).Updates(changes).Error
		if err != nil {
			return err
		}

		return auditpg.InsertTx(tx, entry)
	})
}

// TogglePending flips the payment flag in a single read-modify-write
// transaction and records the transition it actually made.
func (r *SessionRepository) TogglePending(id, actorID int64, entryFor func(oldPending, newPending bool) *audit.Entry) (*session.Session, error) {
	var row sessionDatamodel.TherapySession
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&row).Error; err != nil {
			return err
		}

		oldPending := row.Pending
		newPending := !oldPending
		err := tx.Model(&sessionDatamodel.TherapySession{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"pending":       newPending,
				"updated_by_id": actorID,
			}).Error
		if err != nil {
			return err
		}
		row.Pending = newPending

		return auditpg.InsertTx(tx, entryFor(oldPending, newPending))
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return session.FromDataModel(&row), nil
}

func (r *SessionRepository) GetPersonRef(scope auth.Scope, personID int64) (*session.PersonRef, error) {
	var row personDatamodel.Person
	q := r.db.Where("id = ? AND deleted_at IS NULL", personID)
	if !scope.SeesAll() {
		q = q.Where("user_id = ?", scope.UserID)
	}
	err := q.First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &session.PersonRef{ID: row.ID, UserID: row.UserID, Name: row.Name}, nil
}
