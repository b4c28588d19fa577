package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
)

const (
	activityWindow       = 30 * 24 * time.Hour
	revenueMonths        = 6
	recentActivityLimit  = 10
	dashboardCachePrefix = "dashboard:"
)

// DashboardService aggregates the owner's deals, activities and tasks.
type DashboardService struct {
	deals      *persistence.DealRepository
	activities *persistence.ActivityRepository
	tasks      *persistence.TaskRepository
	cache      ports.Cache
	ttl        time.Duration
	now        func() time.Time
}

// NewDashboardService creates a new DashboardService. A nil cache or a zero
// ttl disables caching.
func NewDashboardService(
	deals *persistence.DealRepository,
	activities *persistence.ActivityRepository,
	tasks *persistence.TaskRepository,
	cache ports.Cache,
	ttl time.Duration,
) *DashboardService {
	return &DashboardService{
		deals:      deals,
		activities: activities,
		tasks:      tasks,
		cache:      cache,
		ttl:        ttl,
		now:        time.Now,
	}
}

func dashboardKey(userID string) string {
	return dashboardCachePrefix + userID
}

func (s *DashboardService) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// Summary returns the dashboard for the caller.
func (s *DashboardService) Summary(ctx context.Context, user *models.UserSession) (*models.DashboardSummary, error) {
	if s.cacheEnabled() {
		var cached models.DashboardSummary
		found, err := s.cache.Get(ctx, dashboardKey(user.ID), &cached)
		if err != nil {
			zap.L().Warn("dashboard cache read failed", zap.String("user_id", user.ID), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	now := s.now().UTC()
	var (
		deals      []*models.Deal
		activities []*models.Activity
		openTasks  []*models.Task
		recent     []*models.Activity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		deals, err = s.deals.ListAll(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("load deals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		activities, err = s.activities.Since(gctx, user.ID, now.Add(-activityWindow))
		if err != nil {
			return fmt.Errorf("load activities: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		openTasks, err = s.tasks.ListOpen(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = s.activities.Recent(gctx, user.ID, recentActivityLimit)
		if err != nil {
			return fmt.Errorf("load recent activities: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(deals, activities, openTasks, recent, now)
	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, dashboardKey(user.ID), summary, s.ttl); err != nil {
			zap.L().Warn("dashboard cache write failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return summary, nil
}

// Summarize computes the dashboard from already loaded rows.
func Summarize(deals []*models.Deal, activities []*models.Activity, openTasks []*models.Task, recent []*models.Activity, now time.Time) *models.DashboardSummary {
	summary := &models.DashboardSummary{
		OpenPipelineValue: pipeline.OpenValue(deals),
		WeightedValue:     pipeline.WeightedValue(deals),
		WonValue:          pipeline.WonValue(deals),
		WinRate:           pipeline.WinRate(deals),
		AverageDealSize:   pipeline.AverageDealSize(deals),
		DealsByStage:      pipeline.CountByStage(deals),
		ActivityByType:    make(map[models.ActivityType]int, len(models.ActivityTypes)),
		MonthlyRevenue:    monthlyRevenue(deals, now),
		RecentActivities:  recent,
		GeneratedAt:       now,
	}
	if summary.RecentActivities == nil {
		summary.RecentActivities = make([]*models.Activity, 0)
	}

	for _, d := range deals {
		if !pipeline.IsClosed(d.Stage) {
			summary.OpenDeals++
		}
	}

	for _, t := range models.ActivityTypes {
		summary.ActivityByType[t] = 0
	}
	cutoff := now.Add(-activityWindow)
	for _, a := range activities {
		if a.OccurredAt.Before(cutoff) {
			continue
		}
		summary.ActivityByType[a.Type]++
	}

	for _, t := range openTasks {
		switch {
		case t.IsDueOn(now):
			summary.DueTodayTasks++
		case t.IsOverdue(now):
			summary.OverdueTasks++
		}
	}
	return summary
}

// monthlyRevenue buckets won value by the month the deal closed, oldest
// month first, current month included.
func monthlyRevenue(deals []*models.Deal, now time.Time) []models.MonthlyRevenue {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(revenueMonths - 1), 0)
	out := make([]models.MonthlyRevenue, revenueMonths)
	index := make(map[string]int, revenueMonths)
	for i := range out {
		m := first.AddDate(0, i, 0).Format("2006-01")
		out[i] = models.MonthlyRevenue{Month: m}
		index[m] = i
	}

	for _, d := range deals {
		if d.Stage != pipeline.StageClosedWon {
			continue
		}
		closed := d.UpdatedAt
		if d.ClosedAt != nil {
			closed = *d.ClosedAt
		}
		if i, ok := index[closed.UTC().Format("2006-01")]; ok {
			out[i].Value += d.Value
		}
	}
	for i := range out {
		out[i].Value = pipeline.RoundCents(out[i].Value)
	}
	return out
}

// Invalidate drops the cached summary of the change's owner.
func (s *DashboardService) Invalidate(ctx context.Context, change events.Change) error {
	if !s.cacheEnabled() || change.UserID == "" {
		return nil
	}
	switch change.Table {
	case constants.TableDeals, constants.TableActivities, constants.TableTasks:
	default:
		return nil
	}
	if err := s.cache.Delete(ctx, dashboardKey(change.UserID)); err != nil {
		zap.L().Warn("dashboard cache invalidation failed", zap.String("user_id", change.UserID), zap.Error(err))
	}
	return nil
}
