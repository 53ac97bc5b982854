package audit

import (
	"log/slog"
	"time"

	errors "github.com/icastillejo/practice-management/internal"
)

const (
	DefaultRecentLimit   = 50
	DefaultUserLimit     = 100
	DefaultHistoryLimit  = 50
	DefaultSummaryDays   = 7
	DefaultRetentionDays = 365
)

// Repository interface defines the data access methods for audit entries
type Repository interface {
	ListRecent(limit int) ([]Entry, error)
	ListForUser(userID int64, limit int) ([]Entry, error)
	ListForTarget(targetType string, targetID int64, limit int) ([]Entry, error)
	ListLoginAttempts(userID *int64, since time.Time) ([]Entry, error)
	CountByAction(action string, since time.Time) (int64, error)
	DeleteOlderThan(threshold time.Time) (int64, error)
}

// Service answers audit queries and enforces retention. Writing entries is
// not done here: mutations persist their own entry in the same transaction
// as the change they describe.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) RecentActivity(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	entries, err := s.repo.ListRecent(limit)
	if err != nil {
		s.logger.Error("failed to list recent activity", "error", err, "limit", limit)
		return nil, errors.NewInternalError("could not load audit activity", err)
	}

	return entries, nil
}

func (s *Service) UserActivity(userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultUserLimit
	}

	entries, err := s.repo.ListForUser(userID, limit)
	if err != nil {
		s.logger.Error("failed to list user activity", "error", err, "user_id", userID)
		return nil, errors.NewInternalError("could not load audit activity", err)
	}

	return entries, nil
}

func (s *Service) RecordHistory(targetType string, targetID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	entries, err := s.repo.ListForTarget(targetType, targetID, limit)
	if err != nil {
		s.logger.Error("failed to list record history",
			"error", err,
			"target_type", targetType,
			"target_id", targetID)
		return nil, errors.NewInternalError("could not load audit history", err)
	}

	return entries, nil
}

// LoginAttempts returns LOGIN and LOGIN_FAILED entries from the last days,
// optionally narrowed to one user, for security monitoring.
func (s *Service) LoginAttempts(userID *int64, days int) ([]Entry, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	entries, err := s.repo.ListLoginAttempts(userID, since)
	if err != nil {
		s.logger.Error("failed to list login attempts", "error", err, "days", days)
		return nil, errors.NewInternalError("could not load login attempts", err)
	}

	return entries, nil
}

func (s *Service) GetSecuritySummary(days int) (*SecuritySummary, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	summary := &SecuritySummary{PeriodDays: days}

	var err error
	if summary.LoginSuccess, err = s.repo.CountByAction(ActionLogin, since); err != nil {
		s.logger.Error("failed to count logins", "error", err)
		return nil, errors.NewInternalError("could not build security summary", err)
	}
	if summary.LoginFailed, err = s.repo.CountByAction(ActionLoginFailed, since); err != nil {
		s.logger.Error("failed to count failed logins", "error", err)
		return nil, errors.NewInternalError("could not build security summary", err)
	}
	if summary.PasswordResets, err = s.repo.CountByAction(ActionPasswordReset, since); err != nil {
		s.logger.Error("failed to count password resets", "error", err)
		return nil, errors.NewInternalError("could not build security summary", err)
	}

	return summary, nil
}

// CleanupOldLogs deletes entries older than days. This is the only path
// that ever removes audit rows and it is reachable from the CLI only.
func (s *Service) CleanupOldLogs(days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	threshold := time.Now().UTC().AddDate(0, 0, -days)

	deleted, err := s.repo.DeleteOlderThan(threshold)
	if err != nil {
		s.logger.Error("failed to clean up audit logs", "error", err, "days", days)
		return 0, errors.NewInternalError("could not clean up audit logs", err)
	}

	s.logger.Info("cleaned up audit logs", "deleted", deleted, "older_than_days", days)
	return deleted, nil
}
