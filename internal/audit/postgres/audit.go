package postgres

import (
	"time"

	"github.com/icastillejo/practice-management/internal/audit"
	auditDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/auditlog"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.Repository {
	return &AuditRepository{db: db}
}

func ToDataModel(e *audit.Entry) *auditDatamodel.AuditLog {
	return &auditDatamodel.AuditLog{
		ID:          e.ID,
		UserID:      e.UserID,
		Action:      e.Action,
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		Description: e.Description,
		OldValues:   e.OldValues,
		NewValues:   e.NewValues,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		RequestID:   e.RequestID,
		CreatedAt:   e.CreatedAt,
	}
}

func FromDataModel(row *auditDatamodel.AuditLog) *audit.Entry {
	return &audit.Entry{
		ID:          row.ID,
		UserID:      row.UserID,
		Action:      row.Action,
		TargetType:  row.TargetType,
		TargetID:    row.TargetID,
		Description: row.Description,
		OldValues:   row.OldValues,
		NewValues:   row.NewValues,
		IPAddress:   row.IPAddress,
		UserAgent:   row.UserAgent,
		RequestID:   row.RequestID,
		CreatedAt:   row.CreatedAt,
	}
}

// InsertTx appends an entry inside the caller's transaction so the entry
// commits or rolls back together with the mutation it describes. A nil
// entry is a no-op.
func InsertTx(tx *gorm.DB, e *audit.Entry) error {
	if e == nil {
		return nil
	}
	row := ToDataModel(e)
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	return nil
}

func (r *AuditRepository) ListRecent(limit int) ([]audit.Entry, error) {
	var rows []*auditDatamodel.AuditLog
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (r *AuditRepository) ListForUser(userID int64, limit int) ([]audit.Entry, error) {
	var rows []*auditDatamodel.AuditLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (r *AuditRepository) ListForTarget(targetType string, targetID int64, limit int) ([]audit.Entry, error) {
	var rows []*auditDatamodel.AuditLog
	err := r.db.Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (r *AuditRepository) ListLoginAttempts(userID *int64, since time.Time) ([]audit.Entry, error) {
	query := r.db.Where("action IN ?", []string{audit.ActionLogin, audit.ActionLoginFailed}).
		Where("created_at >= ?", since)
	if userID != nil {
		query = query.Where("target_id = ?", *userID)
	}

	var rows []*auditDatamodel.AuditLog
	err := query.Order("created_at DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (r *AuditRepository) CountByAction(action string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&auditDatamodel.AuditLog{}).
		Where("action = ? AND created_at >= ?", action, since).
		Count(&count).Error
	return count, err
}

func (r *AuditRepository) DeleteOlderThan(threshold time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", threshold).Delete(&auditDatamodel.AuditLog{})
	return result.RowsAffected, result.Error
}

func fromRows(rows []*auditDatamodel.AuditLog) []audit.Entry {
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *FromDataModel(row))
	}
	return entries
}
