// Package model defines data structures for the networking platform.
package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// UserType is the kind of account behind a profile.
type UserType string

const (
	UserTypeProfessional UserType = "professional"
	UserTypeRecruiter    UserType = "recruiter"
	UserTypeCompany      UserType = "company"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeProfessional, UserTypeRecruiter, UserTypeCompany:
		return true
	}
	return false
}

// Profile is the identity record of a member.
type Profile struct {
	ID          string                       `gorm:"primaryKey;size:36" json:"id"`
	FirstName   string                       `gorm:"size:120" json:"first_name"`
	LastName    string                       `gorm:"size:120" json:"last_name"`
	Title       string                       `gorm:"size:255" json:"title"`
	AvatarURL   string                       `gorm:"size:512" json:"avatar_url"`
	UserType    UserType                     `gorm:"size:20;not null;default:professional" json:"user_type"`
	Bio         string                       `gorm:"type:text" json:"bio"`
	Skills      datatypes.JSONType[[]string] `json:"skills"`
	Education   string                       `gorm:"type:text" json:"education"`
	WorkHistory datatypes.JSON               `json:"work_history,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Company is a company page created by a member.
type Company struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	LogoURL     string    `gorm:"size:512" json:"logo_url"`
	CreatedBy   *string   `gorm:"size:36;index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credential is a credential issued to a member, optionally on behalf of a company.
type Credential struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	UserID         *string        `gorm:"size:36;index" json:"user_id"`
	IssuerID       *string        `gorm:"size:36;index" json:"issuer_id"`
	CompanyID      *string        `gorm:"size:36;index" json:"company_id"`
	IssuedDate     *time.Time     `json:"issued_date"`
	ExpirationDate *time.Time     `json:"expiration_date"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
