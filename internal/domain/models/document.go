package models

import "time"

// Document is a row of documents. The blob lives in object storage under StorageKey.
type Document struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	StorageKey string    `json:"storage_key"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	ContactID  *string   `json:"contact_id"`
	CompanyID  *string   `json:"company_id"`
	DealID     *string   `json:"deal_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentLinks attaches an uploaded document to CRM records.
type DocumentLinks struct {
	ContactID *string `form:"contact_id"`
	CompanyID *string `form:"company_id"`
	DealID    *string `form:"deal_id"`
}

// DownloadLink is a time-limited URL for a document blob.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
