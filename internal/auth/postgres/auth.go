package postgres

import (
	"strings"
	"time"

	"github.com/icastillejo/practice-management/internal/audit"
	auditpg "github.com/icastillejo/practice-management/internal/audit/postgres"
	"github.com/icastillejo/practice-management/internal/auth"
	userDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.RepositoryAPI {
	return &Repository{db: db}
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

func (r *Repository) GetByEmail(email string) (*auth.User, string, error) {
	var row userDatamodel.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(email)).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", nil
		}
		return nil, "", err
	}
	return toDomain(&row), row.PasswordHash, nil
}

func (r *Repository) GetByID(id int64) (*auth.User, error) {
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

func (r *Repository) Create(u *auth.User, passwordHash string, entry *audit.Entry) (*auth.User, error) {
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

func (r *Repository) UpdatePassword(userID int64, passwordHash string, entry *audit.Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&userDatamodel.User{}).
			Where("id = ?", userID).
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

func (r *Repository) RecordLogin(userID int64, at time.Time, entry *audit.Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&userDatamodel.User{}).
			Where("id = ?", userID).
			Update("last_login_at", at).Error
		if err != nil {
			return err
		}
		return auditpg.InsertTx(tx, entry)
	})
}

func (r *Repository) InsertAudit(entry *audit.Entry) error {
	return auditpg.InsertTx(r.db, entry)
}
