package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
)

const (
	reminderWindow = time.Hour
	jobTimeout     = 30 * time.Minute
)

// Reindexer rebuilds the search index.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// SchedulerService runs the periodic jobs: task reminders and the nightly
// search reindex.
type SchedulerService struct {
	tasks     *persistence.TaskRepository
	bus       ports.EventPublisher
	reindexer Reindexer
	cron      *cron.Cron
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	reminded map[string]time.Time // task id -> due date already announced
}

// NewSchedulerService creates a scheduler. reindexer may be nil when no
// search index is configured.
func NewSchedulerService(tasks *persistence.TaskRepository, bus ports.EventPublisher, reindexer Reindexer) *SchedulerService {
	return &SchedulerService{
		tasks:     tasks,
		bus:       bus,
		reindexer: reindexer,
		now:       time.Now,
		reminded:  make(map[string]time.Time),
	}
}

// ParseSpec validates a five-field cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return schedule, nil
}

// Start registers the jobs and starts the cron loop. An empty spec disables
// that job.
func (s *SchedulerService) Start(reminderSpec, reindexSpec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if reminderSpec != "" {
		schedule, err := ParseSpec(reminderSpec)
		if err != nil {
			return err
		}
		c.Schedule(schedule, cron.FuncJob(func() { s.runJob("reminders", s.RunReminders) }))
	}
	if reindexSpec != "" && s.reindexer != nil {
		schedule, err := ParseSpec(reindexSpec)
		if err != nil {
			return err
		}
		c.Schedule(schedule, cron.FuncJob(func() { s.runJob("reindex", s.RunReindex) }))
	}

	c.Start()
	s.cron = c
	s.running = true
	zap.L().Info("scheduler started",
		zap.String("reminders", reminderSpec),
		zap.String("reindex", reindexSpec))
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *SchedulerService) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		zap.L().Info("scheduler stopped")
	case <-ctx.Done():
		zap.L().Warn("scheduler stop timed out with jobs still running")
	}
}

func (s *SchedulerService) runJob(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("scheduled job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()

	if err := job(ctx); err != nil {
		zap.L().Error("scheduled job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	zap.L().Debug("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// RunReminders publishes a task_due event for every open task due within
// the next hour. A task is announced once per due date.
func (s *SchedulerService) RunReminders(ctx context.Context) error {
	now := s.now().UTC()
	due, err := s.tasks.DueBetween(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return fmt.Errorf("load due tasks: %w", err)
	}

	sent := 0
	for _, t := range due {
		if !s.markReminded(t) {
			continue
		}
		if err := s.bus.Publish(ctx, taskDueEvent(t, now)); err != nil {
			zap.L().Warn("task reminder delivery failed", zap.String("task_id", t.ID), zap.Error(err))
			continue
		}
		sent++
	}
	s.pruneReminded(now)
	if sent > 0 {
		zap.L().Info("task reminders sent", zap.Int("count", sent))
	}
	return nil
}

func (s *SchedulerService) markReminded(t *models.Task) bool {
	if t.DueDate == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.reminded[t.ID]; ok && prev.Equal(*t.DueDate) {
		return false
	}
	s.reminded[t.ID] = *t.DueDate
	return true
}

// pruneReminded forgets tasks whose due date has passed the window, so a
// task rescheduled later is announced again.
func (s *SchedulerService) pruneReminded(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, due := range s.reminded {
		if due.Before(now.Add(-reminderWindow)) {
			delete(s.reminded, id)
		}
	}
}

func taskDueEvent(t *models.Task, now time.Time) events.Change {
	c := events.Change{
		Event:    events.TaskDue,
		Table:    constants.TableTasks,
		RecordID: t.ID,
		UserID:   t.UserID,
		At:       now,
	}
	if raw, err := json.Marshal(t); err == nil {
		c.Record = raw
	}
	return c
}

// RunReindex rebuilds the search index.
func (s *SchedulerService) RunReindex(ctx context.Context) error {
	if s.reindexer == nil {
		return nil
	}
	_, err := s.reindexer.Reindex(ctx)
	return err
}
