package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

var taskColumns = []string{
	"id", "user_id", "title", "description", "due_date", "priority", "completed", "completed_at",
	"contact_id", "deal_id", "created_at", "updated_at",
}

var taskList = listSpec{
	table:        constants.TableTasks,
	columns:      columnSet(taskColumns...),
	searchCols:   []string{"title", "description"},
	defaultOrder: constants.FieldDueDate,
	defaultDir:   constants.SortASC,
}

// TaskRepository persists tasks.
type TaskRepository struct {
	*RecordRepository
	now func() time.Time
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(base *RecordRepository) *TaskRepository {
	return &TaskRepository{RecordRepository: base, now: time.Now}
}

func scanTask(s rowScanner) (*models.Task, error) {
	var t models.Task
	var description, contactID, dealID sql.NullString
	var due, completedAt sql.NullTime
	var priority string
	if err := s.Scan(
		&t.ID, &t.UserID, &t.Title, &description, &due, &priority, &t.Completed, &completedAt,
		&contactID, &dealID, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Description = nullableString(description)
	t.DueDate = nullableTime(due)
	t.Priority = models.TaskPriority(priority)
	t.CompletedAt = nullableTime(completedAt)
	t.ContactID = nullableString(contactID)
	t.DealID = nullableString(dealID)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// List returns the owner's tasks. Status narrows to open, completed or overdue.
func (r *TaskRepository) List(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Task, error) {
	dialect := r.Dialect()
	b := query.From(constants.TableTasks).Select(taskColumns...).OwnedBy(userID)

	switch models.TaskStatus(opts.Status) {
	case "":
	case models.TaskStatusOpen:
		b = b.Where("tasks.completed = ?", dialect.BoolValue(false))
	case models.TaskStatusCompleted:
		b = b.Where("tasks.completed = ?", dialect.BoolValue(true))
	case models.TaskStatusOverdue:
		b = b.Where("tasks.completed = ?", dialect.BoolValue(false)).
			Where("tasks.due_date IS NOT NULL").
			Where("tasks.due_date < ?", r.now().UTC())
	default:
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidFilter, opts.Status)
	}
	if opts.ContactID != "" {
		b = b.Where("tasks.contact_id = ?", opts.ContactID)
	}
	if opts.DealID != "" {
		b = b.Where("tasks.deal_id = ?", opts.DealID)
	}

	b, err := r.applyListOptions(b, taskList, opts)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, b.Build())
}

// ListOpen returns every incomplete task of the owner.
func (r *TaskRepository) ListOpen(ctx context.Context, userID string) ([]*models.Task, error) {
	q := query.From(constants.TableTasks).
		Select(taskColumns...).
		OwnedBy(userID).
		Where("tasks.completed = ?", r.Dialect().BoolValue(false)).
		OrderBy(constants.FieldID, constants.SortASC).
		Build()
	return r.fetch(ctx, q)
}

// DueBetween returns incomplete tasks of all owners due in [from, to).
// Used by the reminder job, which runs outside any request.
func (r *TaskRepository) DueBetween(ctx context.Context, from, to time.Time) ([]*models.Task, error) {
	q := query.From(constants.TableTasks).
		Select(taskColumns...).
		Where("tasks.completed = ?", r.Dialect().BoolValue(false)).
		Where("tasks.due_date >= ?", from.UTC()).
		Where("tasks.due_date < ?", to.UTC()).
		OrderBy(constants.FieldDueDate, constants.SortASC).
		Build()
	return r.fetch(ctx, q)
}

func (r *TaskRepository) fetch(ctx context.Context, q query.QueryResult) ([]*models.Task, error) {
	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Get returns one owned task.
func (r *TaskRepository) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	q := query.From(constants.TableTasks).
		Select(taskColumns...).
		Where("tasks.id = ?", id).
		OwnedBy(userID).
		Build()
	t, err := scanTask(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Create inserts t. ID and timestamps must already be set.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	return r.Insert(ctx, constants.TableTasks, map[string]interface{}{
		"id":           t.ID,
		"user_id":      t.UserID,
		"title":        t.Title,
		"description":  nullable(t.Description),
		"due_date":     nullable(t.DueDate),
		"priority":     string(t.Priority),
		"completed":    r.Dialect().BoolValue(t.Completed),
		"completed_at": nullable(t.CompletedAt),
		"contact_id":   nullable(t.ContactID),
		"deal_id":      nullable(t.DealID),
		"created_at":   t.CreatedAt,
		"updated_at":   t.UpdatedAt,
	})
}

// UpdateFields applies a partial update to an owned task.
func (r *TaskRepository) UpdateFields(ctx context.Context, userID, id string, fields map[string]interface{}) error {
	return r.Update(ctx, constants.TableTasks, userID, id, fields, true)
}

// SetCompleted marks an owned task complete at ts, or reopens it when ts is nil.
func (r *TaskRepository) SetCompleted(ctx context.Context, userID, id string, ts *time.Time) error {
	return r.UpdateFields(ctx, userID, id, map[string]interface{}{
		constants.FieldCompleted:   r.Dialect().BoolValue(ts != nil),
		constants.FieldCompletedAt: nullable(ts),
	})
}

// Remove deletes an owned task.
func (r *TaskRepository) Remove(ctx context.Context, userID, id string) error {
	return r.Delete(ctx, constants.TableTasks, userID, id)
}
