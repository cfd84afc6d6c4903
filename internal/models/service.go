package models

import "time"

// Well-known service type codes. The catalog is data-driven; these
// constants cover the services seeded by default.
const (
	ServiceConsularCard    = "carte_consulaire"
	ServiceCareAttestation = "attestation_prise_charge"
	ServiceLegalizations   = "legalisations"
	ServicePassport        = "passeport"
	ServiceCivilStatus     = "etat_civil"
	ServicePowerAttorney   = "procuration"
	ServiceOtherDocuments  = "autres_documents"
)

// Service is a catalog entry for a consular service offered system-wide.
// It carries base pricing and lead time; units override both through
// UnitService configurations.
type Service struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	Code              string  `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name              string  `gorm:"size:200;not null" json:"name"`
	Description       string  `gorm:"type:text" json:"description,omitempty"`
	BaseFee           float64 `gorm:"default:0" json:"baseFee"`
	RequiredDocuments string  `gorm:"type:text" json:"requiredDocuments,omitempty"`
	ProcessingDays    int     `gorm:"default:7" json:"processingDays"`
	Active            bool    `gorm:"index" json:"active"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Service model
func (Service) TableName() string {
	return "services"
}

// UnitService binds a ConsularUnit to a Service with unit-specific
// pricing and lead time. Unique per (unit, service).
type UnitService struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	ConsularUnitID uint    `gorm:"not null;uniqueIndex:uq_unit_service" json:"consularUnitId"`
	ServiceID      uint    `gorm:"not null;uniqueIndex:uq_unit_service" json:"serviceId"`
	Fee            float64 `gorm:"not null" json:"fee"`
	Currency       string  `gorm:"size:3;default:'USD'" json:"currency"`
	Active         bool    `json:"active"`
	CustomDays     *int    `json:"customDays,omitempty"`
	AdminNotes     string  `gorm:"type:text" json:"adminNotes,omitempty"`
	ConfiguredBy   uint    `gorm:"not null" json:"configuredBy"`

	Service Service `gorm:"foreignKey:ServiceID" json:"service,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for UnitService model
func (UnitService) TableName() string {
	return "unit_services"
}

// EffectiveDays returns the lead time in days for this configuration,
// falling back to the service default.
func (us *UnitService) EffectiveDays() int {
	if us.CustomDays != nil {
		return *us.CustomDays
	}
	return us.Service.ProcessingDays
}
