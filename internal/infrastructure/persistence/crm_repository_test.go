package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

func seedProfile(t *testing.T, s *testStore, email string) string {
	t.Helper()
	now := time.Now().UTC()
	p := &models.UserProfile{ID: utils.GenerateID(), Email: email, Role: "sales_rep", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.users.CreateUser(context.Background(), p))
	return p.ID
}

func TestCRMRepositories_OwnerScopedCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	owner := seedProfile(t, s, "owner@example.com")
	other := seedProfile(t, s, "other@example.com")

	company := &models.Company{ID: utils.GenerateID(), UserID: owner, Name: "Acme", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.companies.Create(ctx, company))

	email := "ada@acme.test"
	contact := &models.Contact{
		ID: utils.GenerateID(), UserID: owner, CompanyID: &company.ID,
		FirstName: "Ada", LastName: "Lovelace", Email: &email, Status: models.ContactLead,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.contacts.Create(ctx, contact))

	closeDate := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	deal := &models.Deal{
		ID: utils.GenerateID(), UserID: owner, ContactID: &contact.ID, CompanyID: &company.ID,
		Title: "Rollout", Value: 12000, Currency: "USD", Stage: pipeline.StageProposal, Probability: 50,
		ExpectedCloseDate: &closeDate, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.deals.Create(ctx, deal))

	t.Run("contacts embed company and are owner scoped", func(t *testing.T) {
		mine, err := s.contacts.List(ctx, owner, models.ListOptions{})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		require.NotNil(t, mine[0].Company)
		assert.Equal(t, "Acme", mine[0].Company.Name)

		theirs, err := s.contacts.List(ctx, other, models.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, theirs)

		_, err = s.contacts.Get(ctx, other, contact.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("search matches name substrings", func(t *testing.T) {
		found, err := s.contacts.List(ctx, owner, models.ListOptions{Search: "LOVE"})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		found, err = s.contacts.List(ctx, owner, models.ListOptions{Search: "100%"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("company get counts children", func(t *testing.T) {
		got, err := s.companies.Get(ctx, owner, company.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ContactCount)
		assert.Equal(t, 1, *got.ContactCount)
		assert.Equal(t, 1, *got.DealCount)
	})

	t.Run("deal round trip", func(t *testing.T) {
		got, err := s.deals.Get(ctx, owner, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, 12000.0, got.Value)
		assert.Equal(t, pipeline.StageProposal, got.Stage)
		require.NotNil(t, got.ExpectedCloseDate)
		assert.Equal(t, "2026-09-30", got.ExpectedCloseDate.Format("2006-01-02"))
		require.NotNil(t, got.Contact)
		assert.Equal(t, "Ada", got.Contact.FirstName)
		assert.Nil(t, got.ClosedAt)

		filtered, err := s.deals.List(ctx, owner, models.ListOptions{Filter: "value >= 10000 && stage == 'proposal'"})
		require.NoError(t, err)
		assert.Len(t, filtered, 1)
	})

	t.Run("foreign owner cannot update or delete", func(t *testing.T) {
		err := s.deals.UpdateFields(ctx, other, deal.ID, map[string]interface{}{"title": "Hijacked"})
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.ErrorIs(t, s.deals.Remove(ctx, other, deal.ID), persistence.ErrNotFound)
	})

	t.Run("stage state persists closed_at", func(t *testing.T) {
		closedAt := now
		require.NoError(t, s.deals.SaveState(ctx, owner, deal.ID, pipeline.State{
			Stage: pipeline.StageClosedWon, Probability: 100, ClosedAt: &closedAt,
		}))
		got, err := s.deals.Get(ctx, owner, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StageClosedWon, got.Stage)
		require.NotNil(t, got.ClosedAt)
		assert.True(t, closedAt.Equal(*got.ClosedAt))
	})

	t.Run("deleting a company clears links", func(t *testing.T) {
		require.NoError(t, s.companies.Remove(ctx, owner, company.ID))
		got, err := s.contacts.Get(ctx, owner, contact.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CompanyID)
		assert.Nil(t, got.Company)
	})
}

func TestActivityRepository_TimelineNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := seedProfile(t, s, "timeline@example.com")
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	contact := &models.Contact{ID: utils.GenerateID(), UserID: owner, FirstName: "Grace", Status: models.ContactLead, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, s.contacts.Create(ctx, contact))

	for i, subject := range []string{"first call", "second call", "third call"} {
		a := &models.Activity{
			ID: utils.GenerateID(), UserID: owner, Type: models.ActivityCall, Subject: subject,
			ContactID: &contact.ID, OccurredAt: base.Add(time.Duration(i) * time.Hour), CreatedAt: base,
		}
		require.NoError(t, s.activities.Create(ctx, a))
	}

	timeline, err := s.activities.Timeline(ctx, owner, models.TimelineContact, contact.ID, 0)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	assert.Equal(t, "third call", timeline[0].Subject)
	assert.Equal(t, "first call", timeline[2].Subject)
	require.NotNil(t, timeline[0].Contact)
	assert.Equal(t, "Grace", timeline[0].Contact.FirstName)

	since, err := s.activities.Since(ctx, owner, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, since, 1)

	_, err = s.activities.Timeline(ctx, owner, models.TimelineEntity("invoice"), contact.ID, 0)
	assert.ErrorIs(t, err, persistence.ErrInvalidFilter)
}

func TestTaskRepository_StatusFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := seedProfile(t, s, "tasks@example.com")
	now := time.Now().UTC()
	past := now.Add(-48 * time.Hour)
	soon := now.Add(30 * time.Minute)

	mk := func(title string, due *time.Time) *models.Task {
		task := &models.Task{
			ID: utils.GenerateID(), UserID: owner, Title: title, DueDate: due,
			Priority: models.PriorityMedium, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, s.tasks.Create(ctx, task))
		return task
	}
	overdue := mk("overdue", &past)
	upcoming := mk("upcoming", &soon)
	done := mk("done", &past)
	completedAt := now
	require.NoError(t, s.tasks.SetCompleted(ctx, owner, done.ID, &completedAt))

	open, err := s.tasks.List(ctx, owner, models.ListOptions{Status: "open"})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	late, err := s.tasks.List(ctx, owner, models.ListOptions{Status: "overdue"})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, overdue.ID, late[0].ID)

	completed, err := s.tasks.List(ctx, owner, models.ListOptions{Status: "completed"})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Completed)
	assert.NotNil(t, completed[0].CompletedAt)

	due, err := s.tasks.DueBetween(ctx, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, upcoming.ID, due[0].ID)

	_, err = s.tasks.List(ctx, owner, models.ListOptions{Status: "someday"})
	assert.ErrorIs(t, err, persistence.ErrInvalidFilter)
}

func TestTransactionManager_RollbackDiscardsWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := seedProfile(t, s, "tx@example.com")
	now := time.Now().UTC()
	boom := errors.New("boom")

	company := &models.Company{ID: utils.GenerateID(), UserID: owner, Name: "Ghost", CreatedAt: now, UpdatedAt: now}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.companies.Create(ctx, company); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.companies.Get(ctx, owner, company.ID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSchemaRepository_MigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.schema.Migrate(context.Background()))

	counts, err := s.schema.TableCounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 7)
}
