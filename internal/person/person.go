package person

import (
	"time"

	"github.com/icastillejo/practice-management/internal/core/datamodel"
	personDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/person"
)

// Person is a patient record owned by the practitioner identified by UserID.
type Person struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Notes       string     `json:"notes,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	DeletedByID *int64     `json:"deleted_by_id,omitempty"`
}

func (p *Person) IsDeleted() bool {
	return p.DeletedAt != nil
}

func ToDataModel(p *Person) *personDatamodel.Person {
	return &personDatamodel.Person{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Notes:     p.Notes,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		DeletionStatus: datamodel.DeletionStatus{
			DeletedAt:   p.DeletedAt,
			DeletedByID: p.DeletedByID,
		},
	}
}

func FromDataModel(row *personDatamodel.Person) *Person {
	return &Person{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		Notes:       row.Notes,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		DeletedAt:   row.DeletedAt,
		DeletedByID: row.DeletedByID,
	}
}

func FromDataModelSlice(rows []*personDatamodel.Person) []*Person {
	result := make([]*Person, len(rows))
	for i, row := range rows {
		result[i] = FromDataModel(row)
	}
	return result
}
