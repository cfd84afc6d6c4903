package models

import "time"

// StatusHistory is the append-only transition log for an application.
// Rows are only ever inserted; the history of an application can only grow.
type StatusHistory struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	ApplicationID uint    `gorm:"not null;index" json:"applicationId"`
	OldStatus     *Status `gorm:"size:20" json:"oldStatus,omitempty"`
	NewStatus     Status  `gorm:"size:20;not null" json:"newStatus"`
	ChangedBy     *uint   `json:"changedBy,omitempty"`
	Comment       string  `gorm:"type:text" json:"comment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for StatusHistory model
func (StatusHistory) TableName() string {
	return "status_history"
}
