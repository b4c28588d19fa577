package models

import (
	"strings"
	"time"
)

// ContactStatus is the lifecycle status of a contact.
type ContactStatus string

const (
	ContactLead     ContactStatus = "lead"
	ContactProspect ContactStatus = "prospect"
	ContactCustomer ContactStatus = "customer"
	ContactInactive ContactStatus = "inactive"
)

// Valid reports whether s is a known contact status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactLead, ContactProspect, ContactCustomer, ContactInactive:
		return true
	}
	return false
}

// Contact is a row of contacts with its company summary.
type Contact struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	CompanyID *string         `json:"company_id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     *string         `json:"email"`
	Phone     *string         `json:"phone"`
	JobTitle  *string         `json:"job_title"`
	Status    ContactStatus   `json:"status"`
	Notes     *string         `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Company   *CompanySummary `json:"company,omitempty"`
}

// FullName joins first and last name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ContactSummary is the nested contact shape on deals and activities.
type ContactSummary struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email,omitempty"`
}

// ContactInput is used for both create and partial update.
type ContactInput struct {
	CompanyID *string `json:"company_id" yaml:"company_id"`
	FirstName *string `json:"first_name" yaml:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" yaml:"last_name" binding:"omitempty,max=100"`
	Email     *string `json:"email" yaml:"email" binding:"omitempty,max=254"`
	Phone     *string `json:"phone" yaml:"phone" binding:"omitempty,max=50"`
	JobTitle  *string `json:"job_title" yaml:"job_title" binding:"omitempty,max=100"`
	Status    *string `json:"status" yaml:"status"`
	Notes     *string `json:"notes" yaml:"notes"`
}
