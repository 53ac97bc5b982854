package postgres

import (
	"github.com/icastillejo/practice-management/internal/audit"
	auditpg "github.com/icastillejo/practice-management/internal/audit/postgres"
	"github.com/icastillejo/practice-management/internal/auth"
	userDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/user"
	"github.com/icastillejo/practice-management/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func toDomain(row *userDatamodel.User) *auth.User {
	return &auth.User{
		ID:          row.ID,
		Email:       row.Email,
		Name:        row.Name,
		Role:        row.Role,
		IsActive:    row.IsActive,
		LastLoginAt: row.LastLoginAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (r *UserRepository) List() ([]*auth.User, error) {
	var rows []*userDatamodel.User
	if err := r.db.Order("email ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]*auth.User, len(rows))
	for i, row := range rows {
		users[i] = toDomain(row)
	}
	return users, nil
}

func (r *UserRepository) GetByID(id int64) (*auth.User, error) {
	var row userDatamodel.User
	err := r.db.Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(&row), nil
}

func (r *UserRepository) GetByEmail(email string) (*auth.User, error) {
	var row userDatamodel.User
	err := r.db.Where("LOWER(email) = ?", email).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(&row), nil
}

func (r *UserRepository) Create(u *auth.User, passwordHash string, entry *audit.Entry) (*auth.User, error) {
	row := &userDatamodel.User{
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: passwordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
	}

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

	return toDomain(row), nil
}

func (r *UserRepository) Update(id int64, role string, active bool, entry *audit.Entry) (*auth.User, error) {
	var row userDatamodel.User
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&userDatamodel.User{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"role":      role,
				"is_active": active,
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
		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return toDomain(&row), nil
}

func (r *UserRepository) UpdatePassword(id int64, passwordHash string, entry *audit.Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&userDatamodel.User{}).
			Where("id = ?", id).
			Update("password_hash", passwordHash)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return auditpg.InsertTx(tx, entry)
	})
}
