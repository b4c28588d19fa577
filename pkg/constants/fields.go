package constants

// Column names shared by several tables.
const (
	FieldID          = "id"
	FieldUserID      = "user_id"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
	FieldContactID   = "contact_id"
	FieldCompanyID   = "company_id"
	FieldDealID      = "deal_id"
	FieldEmail       = "email"
	FieldName        = "name"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldNotes       = "notes"
	FieldStage       = "stage"
	FieldProbability = "probability"
	FieldValue       = "value"
	FieldClosedAt    = "closed_at"
	FieldOccurredAt  = "occurred_at"
	FieldDueDate     = "due_date"
	FieldCompleted   = "completed"
	FieldCompletedAt = "completed_at"
	FieldRole        = "role"
	FieldStatus      = "status"
	FieldType        = "type"
)
