package services

import (
	"context"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// TaskService manages follow-up tasks.
type TaskService struct {
	tasks *persistence.TaskRepository
	links linkChecker
	bus   ports.EventPublisher
	now   func() time.Time
}

// NewTaskService creates a TaskService.
func NewTaskService(tasks *persistence.TaskRepository, bus ports.EventPublisher) *TaskService {
	return &TaskService{
		tasks: tasks,
		links: linkChecker{base: tasks.RecordRepository},
		bus:   bus,
		now:   time.Now,
	}
}

// List returns the caller's tasks; opts.Status is open, completed or overdue.
func (s *TaskService) List(ctx context.Context, user *models.UserSession, opts models.ListOptions) ([]*models.Task, error) {
	switch models.TaskStatus(opts.Status) {
	case "", models.TaskStatusOpen, models.TaskStatusCompleted, models.TaskStatusOverdue:
	default:
		return nil, apperrors.NewValidationError(constants.FieldStatus, "must be open, completed or overdue")
	}
	list, err := s.tasks.List(ctx, user.ID, opts)
	return list, mapRepoError(err, "Task", "")
}

func (s *TaskService) Get(ctx context.Context, user *models.UserSession, id string) (*models.Task, error) {
	t, err := s.tasks.Get(ctx, user.ID, id)
	return t, mapRepoError(err, "Task", id)
}

func (s *TaskService) Create(ctx context.Context, user *models.UserSession, in models.TaskInput) (*models.Task, error) {
	title, err := requireText(constants.FieldTitle, in.Title)
	if err != nil {
		return nil, err
	}
	priority := models.PriorityMedium
	if in.Priority != nil && *in.Priority != "" {
		priority = models.TaskPriority(*in.Priority)
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("priority", "must be low, medium or high")
		}
	}
	contactID, dealID := optionalText(in.ContactID), optionalText(in.DealID)
	if err := s.links.check(ctx, user.ID, constants.FieldContactID, constants.TableContacts, contactID); err != nil {
		return nil, err
	}
	if err := s.links.check(ctx, user.ID, constants.FieldDealID, constants.TableDeals, dealID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &models.Task{
		ID:          utils.GenerateID(),
		UserID:      user.ID,
		Title:       title,
		Description: optionalText(in.Description),
		DueDate:     utcPtr(in.DueDate),
		Priority:    priority,
		ContactID:   contactID,
		DealID:      dealID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, mapRepoError(err, "Task", t.ID)
	}

	created, err := s.Get(ctx, user, t.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Insert, constants.TableTasks, user.ID, created.ID, created)
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, user *models.UserSession, id string, in models.TaskInput) (*models.Task, error) {
	fields := map[string]interface{}{}
	if in.Title != nil {
		title, err := requireText(constants.FieldTitle, in.Title)
		if err != nil {
			return nil, err
		}
		fields[constants.FieldTitle] = title
	}
	if in.Description != nil {
		fields[constants.FieldDescription] = nullable(optionalText(in.Description))
	}
	if in.DueDate != nil {
		fields[constants.FieldDueDate] = in.DueDate.UTC()
	}
	if in.Priority != nil {
		p := models.TaskPriority(*in.Priority)
		if !p.Valid() {
			return nil, apperrors.NewValidationError("priority", "must be low, medium or high")
		}
		fields["priority"] = string(p)
	}
	if in.ContactID != nil {
		id := optionalText(in.ContactID)
		if err := s.links.check(ctx, user.ID, constants.FieldContactID, constants.TableContacts, id); err != nil {
			return nil, err
		}
		fields[constants.FieldContactID] = nullable(id)
	}
	if in.DealID != nil {
		id := optionalText(in.DealID)
		if err := s.links.check(ctx, user.ID, constants.FieldDealID, constants.TableDeals, id); err != nil {
			return nil, err
		}
		fields[constants.FieldDealID] = nullable(id)
	}
	if len(fields) == 0 {
		return s.Get(ctx, user, id)
	}
	return s.save(ctx, user, id, func() error {
		return s.tasks.UpdateFields(ctx, user.ID, id, fields)
	})
}

// Complete marks the task done now. Completing a completed task keeps its
// original completion time.
func (s *TaskService) Complete(ctx context.Context, user *models.UserSession, id string) (*models.Task, error) {
	t, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if t.Completed {
		return t, nil
	}
	now := s.now().UTC()
	return s.save(ctx, user, id, func() error {
		return s.tasks.SetCompleted(ctx, user.ID, id, &now)
	})
}

// Reopen clears completed and completed_at.
func (s *TaskService) Reopen(ctx context.Context, user *models.UserSession, id string) (*models.Task, error) {
	t, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !t.Completed {
		return t, nil
	}
	return s.save(ctx, user, id, func() error {
		return s.tasks.SetCompleted(ctx, user.ID, id, nil)
	})
}

func (s *TaskService) save(ctx context.Context, user *models.UserSession, id string, write func() error) (*models.Task, error) {
	if err := write(); err != nil {
		return nil, mapRepoError(err, "Task", id)
	}
	updated, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Update, constants.TableTasks, user.ID, id, updated)
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, user *models.UserSession, id string) error {
	if err := s.tasks.Remove(ctx, user.ID, id); err != nil {
		return mapRepoError(err, "Task", id)
	}
	publish(ctx, s.bus, events.Delete, constants.TableTasks, user.ID, id, nil)
	return nil
}
