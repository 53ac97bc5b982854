package postgres

import (
	"time"

	"github.com/icastillejo/practice-management/internal/audit"
	auditpg "github.com/icastillejo/practice-management/internal/audit/postgres"
	"github.com/icastillejo/practice-management/internal/auth"
	personDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/person"
	sessionDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/therapysession"
	"github.com/icastillejo/practice-management/internal/person"
	"gorm.io/gorm"
)

type PersonRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) person.Repository {
	return &PersonRepository{db: db}
}

func scoped(q *gorm.DB, scope auth.Scope) *gorm.DB {
	if scope.SeesAll() {
		return q
	}
	return q.Where("user_id = ?", scope.UserID)
}

func (r *PersonRepository) Create(p *person.Person, actorID int64, entry *audit.Entry) (*person.Person, error) {
	row := person.ToDataModel(p)
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

	return person.FromDataModel(row), nil
}

func (r *PersonRepository) GetByID(scope auth.Scope, id int64) (*person.Person, error) {
	var row personDatamodel.Person
	err := scoped(r.db.Where("id = ? AND deleted_at IS NULL", id), scope).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return person.FromDataModel(&row), nil
}

func (r *PersonRepository) GetByIDWithDeleted(scope auth.Scope, id int64) (*person.Person, error) {
	var row personDatamodel.Person
	err := scoped(r.db.Where("id = ?", id), scope).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return person.FromDataModel(&row), nil
}

func (r *PersonRepository) List(scope auth.Scope) ([]*person.Person, error) {
	var rows []*personDatamodel.Person
	err := scoped(r.db.Where("deleted_at IS NULL"), scope).
		Order("name ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return person.FromDataModelSlice(rows), nil
}

func (r *PersonRepository) NameExists(ownerID int64, name string, excludeID int64) (bool, error) {
	q := r.db.Model(&personDatamodel.Person{}).
		Where("user_id = ? AND name = ? AND deleted_at IS NULL", ownerID, name)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PersonRepository) Update(p *person.Person, actorID int64, entry *audit.Entry) (*person.Person, error) {
	var row personDatamodel.Person
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&personDatamodel.Person{}).
			Where("id = ? AND deleted_at IS NULL", p.ID).
			Updates(map[string]interface{}{
				"name":          p.Name,
				"notes":         p.Notes,
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
		return tx.Where("id = ?", p.ID).First(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return person.FromDataModel(&row), nil
}

// SoftDelete stamps the patient and cascades the same mark to its live
// sessions. Re-deleting keeps the original timestamp.
func (r *PersonRepository) SoftDelete(id, actorID int64, at time.Time, entry *audit.Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var row personDatamodel.Person
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
		err := tx.Model(&personDatamodel.Person{}).Where("id = ?", id).Updates(changes).Error
		if err != nil {
			return err
		}

		err = tx.Model(&sessionDatamodel.TherapySession{}).
			Where("person_id = ? AND deleted_at IS NULL", id).
			Updates(changes).Error
		if err != nil {
			return err
		}

		return auditpg.InsertTx(tx, entry)
	})
}

// Restore clears the deletion mark on the patient and on the sessions that
// were swept up by the same cascade. Those carry the patient's deletion
// timestamp; sessions deleted on their own keep their mark.
func (r *PersonRepository) Restore(id int64, entry *audit.Entry) (*person.Person, error) {
	var row personDatamodel.Person
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}

		cascadeStamp := row.DeletedAt
		changes := map[string]interface{}{
			"deleted_at":    nil,
			"deleted_by_id": nil,
		}
		if row.Restore() {
			err := tx.Model(&personDatamodel.Person{}).Where("id = ?", id).Updates(changes).Error
			if err != nil {
				return err
			}
		}

		if cascadeStamp != nil {
			err := tx.Model(&sessionDatamodel.TherapySession{}).
				Where("person_id = ? AND deleted_at = ?", id, *cascadeStamp).
				Updates(changes).Error
			if err != nil {
				return err
			}
		}

		return auditpg.InsertTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return person.FromDataModel(&row), nil
}
