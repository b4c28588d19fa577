package models

import "time"

// TaskPriority ranks tasks.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is a row of tasks.
type Task struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	DueDate     *time.Time   `json:"due_date"`
	Priority    TaskPriority `json:"priority"`
	Completed   bool         `json:"completed"`
	CompletedAt *time.Time   `json:"completed_at"`
	ContactID   *string      `json:"contact_id"`
	DealID      *string      `json:"deal_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsOverdue reports whether an open task's due date has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// IsDueOn reports whether an open task is due on the calendar day of now.
func (t *Task) IsDueOn(now time.Time) bool {
	if t.Completed || t.DueDate == nil {
		return false
	}
	y1, m1, d1 := t.DueDate.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// TaskStatus filters task lists.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusOverdue   TaskStatus = "overdue"
)

// TaskInput is used for both create and partial update.
type TaskInput struct {
	Title       *string    `json:"title" yaml:"title" binding:"omitempty,max=300"`
	Description *string    `json:"description" yaml:"description"`
	DueDate     *time.Time `json:"due_date" yaml:"due_date"`
	Priority    *string    `json:"priority" yaml:"priority"`
	ContactID   *string    `json:"contact_id" yaml:"contact_id"`
	DealID      *string    `json:"deal_id" yaml:"deal_id"`
}
