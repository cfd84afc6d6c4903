package models

import "time"

// AuditLog is an append-only record of who did what to which resource.
// A row is written alongside every state-changing operation.
type AuditLog struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     *uint  `gorm:"index" json:"userId,omitempty"`
	Action     string `gorm:"size:100;not null;index" json:"action"`
	Resource   string `gorm:"size:100" json:"resource,omitempty"`
	ResourceID *uint  `json:"resourceId,omitempty"`
	Details    string `gorm:"type:text" json:"details,omitempty"`
	IPAddress  string `gorm:"size:45" json:"ipAddress,omitempty"`
	UserAgent  string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
