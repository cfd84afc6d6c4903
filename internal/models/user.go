package models

import (
	"time"
)

// Role identifies which route family a user may reach. There is no
// hierarchy: each role has its own enumerated set of allowed routes.
type Role string

const (
	RoleCitizen    Role = "usager"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "superviseur"
)

// StaffRoles are the roles allowed through the staff login portal.
var StaffRoles = []Role{RoleAgent, RoleAdmin, RoleSupervisor}

// User represents any account in the system: citizens and consular staff.
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:256;not null" json:"-"`
	FirstName    string `gorm:"size:64;not null" json:"firstName"`
	LastName     string `gorm:"size:64;not null" json:"lastName"`
	MiddleName   string `gorm:"size:64" json:"middleName,omitempty"`
	Phone        string `gorm:"size:20" json:"phone,omitempty"`
	Role         Role   `gorm:"size:20;default:'usager';index" json:"role"`
	Active       bool   `json:"active"`
	Language     string `gorm:"size:2;default:'fr'" json:"language"`

	// Civil status and residency, required for a complete citizen profile
	Gender      string     `gorm:"size:10" json:"gender,omitempty"`
	BirthDate   *time.Time `json:"birthDate,omitempty"`
	BirthPlace  string     `gorm:"size:100" json:"birthPlace,omitempty"`
	CivilStatus string     `gorm:"size:20" json:"civilStatus,omitempty"`
	Nationality string     `gorm:"size:50;default:'Congolaise'" json:"nationality"`
	Profession  string     `gorm:"size:100" json:"profession,omitempty"`
	Street      string     `gorm:"size:200" json:"street,omitempty"`
	City        string     `gorm:"size:100" json:"city,omitempty"`
	Country     string     `gorm:"size:100" json:"country,omitempty"`
	PostalCode  string     `gorm:"size:20" json:"postalCode,omitempty"`

	PassportNumber  string     `gorm:"size:50" json:"passportNumber,omitempty"`
	PassportIssued  *time.Time `json:"passportIssued,omitempty"`
	PassportExpires *time.Time `json:"passportExpires,omitempty"`

	ConsularUnitID  *uint `gorm:"index" json:"consularUnitId,omitempty"`
	ProfileComplete bool  `gorm:"default:false" json:"profileComplete"`

	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// FullName returns the display name used in notifications and documents.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsStaff reports whether the user may reach any staff surface.
func (u *User) IsStaff() bool {
	return u.Role == RoleAgent || u.Role == RoleAdmin || u.Role == RoleSupervisor
}
