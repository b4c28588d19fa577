package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
)

func TestParseSpec(t *testing.T) {
	for _, spec := range []string{"*/5 * * * *", "0 3 * * *", "30 9 * * mon-fri"} {
		_, err := services.ParseSpec(spec)
		assert.NoError(t, err, spec)
	}
	for _, spec := range []string{"", "every minute", "* * * *", "0 0 3 * * *", "61 * * * *"} {
		_, err := services.ParseSpec(spec)
		assert.Error(t, err, spec)
	}
}

func TestScheduler_RemindersAreSentOncePerDueDate(t *testing.T) {
	sm := newManager(t, services.Dependencies{})
	ctx := context.Background()
	user := salesRep(t, sm)
	due := record(sm, events.TaskDue)

	soon := time.Now().UTC().Add(20 * time.Minute).Truncate(time.Second)
	later := time.Now().UTC().Add(5 * time.Hour)
	task, err := sm.Tasks.Create(ctx, user, models.TaskInput{Title: strPtr("Send contract"), DueDate: &soon})
	require.NoError(t, err)
	_, err = sm.Tasks.Create(ctx, user, models.TaskInput{Title: strPtr("Tomorrow's call"), DueDate: &later})
	require.NoError(t, err)
	done, err := sm.Tasks.Create(ctx, user, models.TaskInput{Title: strPtr("Already done"), DueDate: &soon})
	require.NoError(t, err)
	_, err = sm.Tasks.Complete(ctx, user, done.ID)
	require.NoError(t, err)

	require.NoError(t, sm.Scheduler.RunReminders(ctx))
	sent := due.drain()
	require.Len(t, sent, 1)
	assert.Equal(t, task.ID, sent[0].RecordID)
	assert.Equal(t, user.ID, sent[0].UserID)
	assert.Equal(t, constants.TableTasks, sent[0].Table)

	var payload models.Task
	require.NoError(t, json.Unmarshal(sent[0].Record, &payload))
	assert.Equal(t, "Send contract", payload.Title)

	require.NoError(t, sm.Scheduler.RunReminders(ctx))
	assert.Empty(t, due.drain(), "a task is announced once per due date")

	// Rescheduling inside the window announces it again.
	sooner := soon.Add(10 * time.Minute)
	_, err = sm.Tasks.Update(ctx, user, task.ID, models.TaskInput{DueDate: &sooner})
	require.NoError(t, err)
	require.NoError(t, sm.Scheduler.RunReminders(ctx))
	assert.Len(t, due.drain(), 1)
}

// MockReindexer is a testify mock of the search reindex job.
type MockReindexer struct {
	mock.Mock
}

func (m *MockReindexer) Reindex(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestScheduler_StartAndStop(t *testing.T) {
	sm := newManager(t, services.Dependencies{})

	bg, stop := context.WithCancel(context.Background())
	defer stop()
	err := sm.StartBackground(bg, config.SchedulerConfig{Enabled: true, ReminderSpec: "not a spec"})
	assert.Error(t, err)

	reindexer := new(MockReindexer)
	reindexer.On("Reindex", mock.Anything).Return(3, nil).Once()
	s := services.NewSchedulerService(nil, sm.EventBus, reindexer)
	require.NoError(t, s.RunReindex(context.Background()))
	reindexer.AssertExpectations(t)

	require.NoError(t, s.Start("", "0 3 * * *"))
	require.NoError(t, s.Start("", "0 3 * * *"), "starting twice is a no-op")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)

	// Without a reindexer the job is a no-op.
	assert.NoError(t, services.NewSchedulerService(nil, sm.EventBus, nil).RunReindex(context.Background()))
}
