package therapysession

import (
	"time"

	"github.com/icastillejo/practice-management/internal/core/datamodel"
)

type TherapySession struct {
	ID          int64     `gorm:"primaryKey"`
	PersonID    int64     `gorm:"column:person_id;not null;index"`
	UserID      int64     `gorm:"column:user_id;not null;index"`
	SessionDate time.Time `gorm:"column:session_date;type:date;not null"`
	Price       float64   `gorm:"column:session_price;not null"`
	Pending     bool      `gorm:"column:pending;not null"`
	Notes       string    `gorm:"column:notes"`
	CreatedByID *int64    `gorm:"column:created_by_id"`
	UpdatedByID *int64    `gorm:"column:updated_by_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	datamodel.DeletionStatus `gorm:"embedded"`
}

func (TherapySession) TableName() string {
	return "therapy_sessions"
}
