package models

import "time"

// Company is a row of companies.
type Company struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Industry  *string   `json:"industry"`
	Website   *string   `json:"website"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	Size      *string   `json:"size"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated by Get only.
	ContactCount *int `json:"contact_count,omitempty"`
	DealCount    *int `json:"deal_count,omitempty"`
}

// CompanySummary is the nested company shape on contacts and deals.
type CompanySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompanyInput is used for both create and partial update.
type CompanyInput struct {
	Name     *string `json:"name" yaml:"name" binding:"omitempty,max=200"`
	Industry *string `json:"industry" yaml:"industry" binding:"omitempty,max=100"`
	Website  *string `json:"website" yaml:"website" binding:"omitempty,max=500"`
	Phone    *string `json:"phone" yaml:"phone" binding:"omitempty,max=50"`
	Address  *string `json:"address" yaml:"address" binding:"omitempty,max=500"`
	Size     *string `json:"size" yaml:"size" binding:"omitempty,max=50"`
	Notes    *string `json:"notes" yaml:"notes"`
}
