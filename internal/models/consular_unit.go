package models

import "time"

// ConsularUnit is an embassy or consulate. It owns applications and
// employs the agents and admins assigned to it.
type ConsularUnit struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Type        string `gorm:"size:50;not null" json:"type"` // ambassade | consulat
	City        string `gorm:"size:100;not null" json:"city"`
	Country     string `gorm:"size:100;not null;index" json:"country"`
	CountryCode string `gorm:"size:3" json:"countryCode,omitempty"`

	HeadName  string `gorm:"size:100" json:"headName,omitempty"`
	HeadTitle string `gorm:"size:100" json:"headTitle,omitempty"`

	PrimaryEmail   string `gorm:"size:120;not null" json:"primaryEmail"`
	SecondaryEmail string `gorm:"size:120" json:"secondaryEmail,omitempty"`
	PrimaryPhone   string `gorm:"size:20;not null" json:"primaryPhone"`
	SecondaryPhone string `gorm:"size:20" json:"secondaryPhone,omitempty"`

	Street        string `gorm:"size:200" json:"street,omitempty"`
	AddressCity   string `gorm:"size:100" json:"addressCity,omitempty"`
	PostalCode    string `gorm:"size:20" json:"postalCode,omitempty"`
	AddressExtra  string `gorm:"size:200" json:"addressExtra,omitempty"`
	Timezone      string `gorm:"size:50;default:'UTC'" json:"timezone"`

	Active    bool      `gorm:"index" json:"active"`
	CreatedBy uint      `gorm:"not null" json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Agents   []User        `gorm:"foreignKey:ConsularUnitID" json:"agents,omitempty"`
	Services []UnitService `gorm:"foreignKey:ConsularUnitID;constraint:OnDelete:CASCADE" json:"services,omitempty"`
}

// TableName specifies the table name for ConsularUnit model
func (ConsularUnit) TableName() string {
	return "consular_units"
}
