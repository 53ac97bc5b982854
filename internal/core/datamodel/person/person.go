package person

import (
	"time"

	"github.com/icastillejo/practice-management/internal/core/datamodel"
)

type Person struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;index"`
	Name        string    `gorm:"column:name;not null;index"`
	Notes       string    `gorm:"column:notes"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedByID *int64    `gorm:"column:created_by_id"`
	UpdatedByID *int64    `gorm:"column:updated_by_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	datamodel.DeletionStatus `gorm:"embedded"`
}

func (Person) TableName() string {
	return "persons"
}
