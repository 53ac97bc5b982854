package datamodel

import "time"

// DeletionStatus is the soft-delete marker shared by the domain and storage
// layers. The zero value means the record is active.
type DeletionStatus struct {
	DeletedAt   *time.Time `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`
	DeletedByID *int64     `gorm:"column:deleted_by_id" json:"deleted_by_id,omitempty"`
}

func (d DeletionStatus) IsDeleted() bool {
	return d.DeletedAt != nil
}

// MarkDeleted records who deleted the record and when. Repeated calls keep
// the original timestamp and actor and report false.
func (d *DeletionStatus) MarkDeleted(byUserID int64, at time.Time) bool {
	if d.DeletedAt != nil {
		return false
	}
	t := at
	d.DeletedAt = &t
	d.DeletedByID = &byUserID
	return true
}

// Restore clears the marker. Reports false when the record was not deleted.
func (d *DeletionStatus) Restore() bool {
	if d.DeletedAt == nil {
		return false
	}
	d.DeletedAt = nil
	d.DeletedByID = nil
	return true
}
