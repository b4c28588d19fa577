package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
)

func TestTaskDueHelpers(t *testing.T) {
	now := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	laterToday := now.Add(3 * time.Hour)

	overdue := Task{DueDate: &yesterday}
	assert.True(t, overdue.IsOverdue(now))
	assert.False(t, overdue.IsDueOn(now))

	today := Task{DueDate: &laterToday}
	assert.False(t, today.IsOverdue(now))
	assert.True(t, today.IsDueOn(now))

	done := Task{DueDate: &yesterday, Completed: true}
	assert.False(t, done.IsOverdue(now))

	undated := Task{}
	assert.False(t, undated.IsOverdue(now))
	assert.False(t, undated.IsDueOn(now))
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, ActivityStageChange.Valid())
	assert.False(t, ActivityType("fax").Valid())
	assert.True(t, ContactProspect.Valid())
	assert.False(t, ContactStatus("vip").Valid())
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, TaskPriority("urgent").Valid())
	assert.Equal(t, "deal_id", TimelineDeal.Column())
	assert.Equal(t, "", TimelineEntity("invoice").Column())
}

func TestContactFullName(t *testing.T) {
	c := Contact{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", c.FullName())
	c.LastName = ""
	assert.Equal(t, "Ada", c.FullName())
}

func TestUserSessionIsAdmin(t *testing.T) {
	var nilSession *UserSession
	assert.False(t, nilSession.IsAdmin())
	assert.True(t, (&UserSession{Role: "admin"}).IsAdmin())
	assert.False(t, (&UserSession{Role: "sales_rep"}).IsAdmin())
}

func TestDealPipelineState(t *testing.T) {
	d := Deal{Stage: pipeline.StageLead, Probability: 10, Value: 100}
	next, changed, err := pipeline.Transition(d.PipelineState(), pipeline.StageClosedWon, time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	assert.Equal(t, pipeline.StageClosedWon, next.Stage)
	assert.Equal(t, 100, next.Probability)
	assert.NotNil(t, next.ClosedAt)
	assert.Equal(t, pipeline.StageLead, d.Stage, "the deal itself is untouched")
}

func TestUserProfileHidesPasswordHash(t *testing.T) {
	p := UserProfile{ID: "u1", Email: "a@b.co", PasswordHash: "$2a$10$secret"}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Equal(t, "a@b.co", p.DisplayName())
}
