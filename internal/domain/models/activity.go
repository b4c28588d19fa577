package models

import "time"

// ActivityType classifies a timeline entry.
type ActivityType string

const (
	ActivityCall        ActivityType = "call"
	ActivityEmail       ActivityType = "email"
	ActivityMeeting     ActivityType = "meeting"
	ActivityNote        ActivityType = "note"
	ActivityTask        ActivityType = "task"
	ActivityStageChange ActivityType = "stage_change"
)

// ActivityTypes lists the known types.
var ActivityTypes = []ActivityType{
	ActivityCall, ActivityEmail, ActivityMeeting, ActivityNote, ActivityTask, ActivityStageChange,
}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Activity is a row of activities with contact and deal summaries.
type Activity struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Type            ActivityType    `json:"type"`
	Subject         string          `json:"subject"`
	Description     *string         `json:"description"`
	ContactID       *string         `json:"contact_id"`
	CompanyID       *string         `json:"company_id"`
	DealID          *string         `json:"deal_id"`
	OccurredAt      time.Time       `json:"occurred_at"`
	DurationMinutes *int            `json:"duration_minutes"`
	CreatedAt       time.Time       `json:"created_at"`
	Contact         *ContactSummary `json:"contact,omitempty"`
	Deal            *DealSummary    `json:"deal,omitempty"`
}

// ActivityInput is used for both create and partial update.
type ActivityInput struct {
	Type            *string    `json:"type" yaml:"type"`
	Subject         *string    `json:"subject" yaml:"subject" binding:"omitempty,max=300"`
	Description     *string    `json:"description" yaml:"description"`
	ContactID       *string    `json:"contact_id" yaml:"contact_id"`
	CompanyID       *string    `json:"company_id" yaml:"company_id"`
	DealID          *string    `json:"deal_id" yaml:"deal_id"`
	OccurredAt      *time.Time `json:"occurred_at" yaml:"occurred_at"`
	DurationMinutes *int       `json:"duration_minutes" yaml:"duration_minutes" binding:"omitempty,min=0"`
}

// TimelineEntity names the record a timeline is requested for.
type TimelineEntity string

const (
	TimelineContact TimelineEntity = "contact"
	TimelineCompany TimelineEntity = "company"
	TimelineDeal    TimelineEntity = "deal"
)

// Column returns the activities foreign key for the entity.
func (e TimelineEntity) Column() string {
	switch e {
	case TimelineContact:
		return "contact_id"
	case TimelineCompany:
		return "company_id"
	case TimelineDeal:
		return "deal_id"
	}
	return ""
}
