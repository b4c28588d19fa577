package models

// SearchHit is one global search result.
type SearchHit struct {
	Table    string `json:"table"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

// SearchDocument is the indexed shape of a contact, company or deal.
type SearchDocument struct {
	ID       string `json:"id"`
	RecordID string `json:"record_id"`
	UserID   string `json:"user_id"`
	Table    string `json:"table"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body,omitempty"`
}

// Hit converts an indexed document to a search result.
func (d SearchDocument) Hit() SearchHit {
	return SearchHit{Table: d.Table, ID: d.RecordID, Title: d.Title, Subtitle: d.Subtitle}
}

// ReportRequest is the POST /reports/query body.
type ReportRequest struct {
	SQL string `json:"sql" binding:"required"`
}

// ReportResult holds the rows of an ad-hoc report.
type ReportResult struct {
	SQL       string                   `json:"sql"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	Truncated bool                     `json:"truncated"`
}
