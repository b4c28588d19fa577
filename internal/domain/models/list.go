package models

// ListOptions are the common list query parameters. Zero values mean
// "not set". Filter is an expression such as `value > 1000 && stage == 'proposal'`.
type ListOptions struct {
	Filter    string
	Search    string
	OrderBy   string
	OrderDir  string
	Limit     int
	Offset    int
	CompanyID string
	ContactID string
	DealID    string
	Status    string
	Stage     string
	Type      string
}
