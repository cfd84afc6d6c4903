package models

import "time"

// Notification type tags, matched when marking the agent's new-application
// alert read on take.
const (
	NotificationNewApplication = "nouvelle_demande"
	NotificationUnitAdmin      = "nouvelle_demande_admin"
	NotificationStatusChange   = "demande_traitee"
	NotificationPaymentDue     = "paiement_requis"
	NotificationDocumentReady  = "document_pret"
	NotificationServiceConfig  = "service_configure"
)

// Notification is an in-app message to one user. In-app rows are written
// transactionally with the workflow event that produced them; email is a
// separate best-effort channel.
type Notification struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"userId"`
	Type        string `gorm:"size:30;default:'info';index" json:"type"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Message     string `gorm:"type:text;not null" json:"message"`
	ReferenceID *uint  `gorm:"index" json:"referenceId,omitempty"`

	Read   bool       `gorm:"default:false;index" json:"read"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Notification model
func (Notification) TableName() string {
	return "notifications"
}
