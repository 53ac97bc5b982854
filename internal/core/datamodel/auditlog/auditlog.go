package auditlog

import "time"

// AuditLog rows are append-only. Nothing in the application updates or
// deletes them except the retention cleanup command.
type AuditLog struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      *int64    `gorm:"column:user_id;index"`
	Action      string    `gorm:"column:action;not null;index"`
	TargetType  string    `gorm:"column:target_type;not null;index"`
	TargetID    int64     `gorm:"column:target_id;not null"`
	Description string    `gorm:"column:description"`
	OldValues   string    `gorm:"column:old_values"`
	NewValues   string    `gorm:"column:new_values"`
	IPAddress   string    `gorm:"column:ip_address"`
	UserAgent   string    `gorm:"column:user_agent"`
	RequestID   string    `gorm:"column:request_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
