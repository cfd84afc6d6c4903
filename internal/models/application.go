package models

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the closed set of application states. Transitions between
// them are governed by the workflow package; the status column is never
// written outside it.
type Status string

const (
	StatusSubmitted      Status = "soumise"
	StatusProcessing     Status = "en_traitement"
	StatusApproved       Status = "validee"
	StatusRejected       Status = "rejetee"
	StatusNeedsDocuments Status = "documents_requis"
	StatusReadyForPickup Status = "pret_pour_retrait"
	StatusClosed         Status = "cloture"
)

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusProcessing, StatusApproved, StatusRejected,
		StatusNeedsDocuments, StatusReadyForPickup, StatusClosed:
		return true
	}
	return false
}

// Display returns the French label shown to citizens.
func (s Status) Display() string {
	switch s {
	case StatusSubmitted:
		return "Soumise"
	case StatusProcessing:
		return "En traitement"
	case StatusApproved:
		return "Validée"
	case StatusRejected:
		return "Rejetée"
	case StatusNeedsDocuments:
		return "Documents supplémentaires requis"
	case StatusReadyForPickup:
		return "Prêt pour retrait"
	case StatusClosed:
		return "Dossier clôturé"
	}
	return string(s)
}

// Payment states for an application fee.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Application is a citizen's request for one consular service, tracked
// end-to-end via its reference number.
type Application struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"userId"`
	ConsularUnitID  uint           `gorm:"not null;index" json:"consularUnitId"`
	ServiceType     string         `gorm:"size:50;not null;index" json:"serviceType"`
	ReferenceNumber string         `gorm:"size:20;uniqueIndex;not null" json:"referenceNumber"`
	Status          Status         `gorm:"size:20;default:'soumise';index" json:"status"`
	FormData        datatypes.JSON `json:"formData,omitempty"`

	ProcessedBy     *uint      `gorm:"index" json:"processedBy,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`
	AppointmentDate *time.Time `json:"appointmentDate,omitempty"`
	PaymentAmount   float64    `gorm:"default:0" json:"paymentAmount"`
	PaymentStatus   string     `gorm:"size:20;default:'pending'" json:"paymentStatus"`

	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Unit          *ConsularUnit   `gorm:"foreignKey:ConsularUnitID" json:"unit,omitempty"`
	Documents     []Document      `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	StatusHistory []StatusHistory `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"statusHistory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Application model
func (Application) TableName() string {
	return "applications"
}

// ServiceDisplay returns the French label for the requested service.
func (a *Application) ServiceDisplay() string {
	switch a.ServiceType {
	case ServiceConsularCard:
		return "Carte Consulaire"
	case ServiceCareAttestation:
		return "Attestation de Prise en Charge"
	case ServiceLegalizations:
		return "Légalisations"
	case ServicePassport:
		return "Passeport"
	case ServiceCivilStatus:
		return "Acte d'État Civil"
	case ServicePowerAttorney:
		return "Procuration"
	case ServiceOtherDocuments:
		return "Autres Documents"
	}
	return a.ServiceType
}
