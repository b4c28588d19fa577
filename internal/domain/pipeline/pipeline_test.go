package pipeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deal struct {
	stage Stage
	value float64
	prob  int
}

func (d deal) PipelineStage() Stage { return d.stage }
func (d deal) Amount() float64      { return d.value }
func (d deal) WinProbability() int  { return d.prob }

func TestDefaultProbability(t *testing.T) {
	want := map[Stage]int{
		StageLead:        10,
		StageQualified:   25,
		StageProposal:    50,
		StageNegotiation: 75,
		StageClosedWon:   100,
		StageClosedLost:  0,
	}
	for stage, p := range want {
		got, err := DefaultProbability(stage)
		require.NoError(t, err)
		assert.Equal(t, p, got, stage)
	}

	_, err := DefaultProbability("discovery")
	var unknown *ErrUnknownStage
	assert.ErrorAs(t, err, &unknown)
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" Closed Won ")
	require.NoError(t, err)
	assert.Equal(t, StageClosedWon, s)

	_, err = ParseStage("won")
	assert.Error(t, err)
	assert.Equal(t, "Closed Lost", StageClosedLost.Label())
	assert.True(t, IsClosed(StageClosedLost))
	assert.False(t, IsClosed(StageNegotiation))
}

func TestTransition(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-48 * time.Hour)

	tests := []struct {
		name    string
		from    State
		to      Stage
		want    State
		changed bool
	}{
		{
			name:    "advance open deal",
			from:    State{Stage: StageLead, Probability: 10},
			to:      StageProposal,
			want:    State{Stage: StageProposal, Probability: 50},
			changed: true,
		},
		{
			name:    "win stamps closed_at",
			from:    State{Stage: StageNegotiation, Probability: 80},
			to:      StageClosedWon,
			want:    State{Stage: StageClosedWon, Probability: 100, ClosedAt: &now},
			changed: true,
		},
		{
			name:    "reopen clears closed_at",
			from:    State{Stage: StageClosedLost, Probability: 0, ClosedAt: &earlier},
			to:      StageQualified,
			want:    State{Stage: StageQualified, Probability: 25},
			changed: true,
		},
		{
			name:    "lost to won restamps",
			from:    State{Stage: StageClosedLost, ClosedAt: &earlier},
			to:      StageClosedWon,
			want:    State{Stage: StageClosedWon, Probability: 100, ClosedAt: &now},
			changed: true,
		},
		{
			name:    "same stage is a no-op",
			from:    State{Stage: StageProposal, Probability: 65},
			to:      StageProposal,
			want:    State{Stage: StageProposal, Probability: 65},
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := Transition(tt.from, tt.to, now)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Transition() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, _, err := Transition(State{Stage: StageLead}, "archived", now)
	assert.Error(t, err)
}

func sampleDeals() []deal {
	return []deal{
		{StageLead, 1000, 10},
		{StageProposal, 4000, 50},
		{StageNegotiation, 2000, 75},
		{StageClosedWon, 5000, 100},
		{StageClosedWon, 3000, 100},
		{StageClosedLost, 7000, 0},
	}
}

func TestMetrics(t *testing.T) {
	deals := sampleDeals()

	// 100 + 2000 + 1500
	assert.Equal(t, 3600.0, WeightedValue(deals))
	assert.Equal(t, 7000.0, OpenValue(deals))
	assert.Equal(t, 8000.0, WonValue(deals))
	assert.Equal(t, 66.67, WinRate(deals))
	assert.Equal(t, 4000.0, AverageDealSize(deals))
}

func TestMetrics_NoClosedDeals(t *testing.T) {
	deals := []deal{{StageLead, 500, 10}}
	assert.Equal(t, 0.0, WinRate(deals))
	assert.Equal(t, 0.0, AverageDealSize(deals))
	assert.Equal(t, 0.0, WinRate([]deal{}))
}

func TestWeightedValue_IgnoresClosedProbability(t *testing.T) {
	// a won deal with a stale probability still contributes nothing
	deals := []deal{{StageClosedWon, 1000, 90}, {StageClosedLost, 1000, 40}}
	assert.Equal(t, 0.0, WeightedValue(deals))
}

func TestBoard(t *testing.T) {
	deals := append(sampleDeals(), deal{"archived", 99, 0})
	board := Board(deals)

	require.Len(t, board, len(Stages))
	for i, col := range board {
		assert.Equal(t, Stages[i], col.Stage)
	}

	assert.Equal(t, 0, board[1].Count, "qualified is empty but present")
	assert.NotNil(t, board[1].Deals)
	assert.Equal(t, 2, board[4].Count)
	assert.Equal(t, 8000.0, board[4].TotalValue)
	assert.Equal(t, 2000.0, board[2].WeightedValue)
	assert.Equal(t, "Closed Won", board[4].Label)

	counts := CountByStage(deals)
	assert.Equal(t, 0, counts[StageQualified])
	assert.Equal(t, 2, counts[StageClosedWon])
	assert.Len(t, counts, len(Stages))
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 12.34, RoundCents(12.344))
	assert.Equal(t, 12.35, RoundCents(12.345678))
	assert.Equal(t, -0.13, RoundCents(-0.125))
	assert.Equal(t, 1e18, RoundCents(1e18), "large totals do not overflow")
}
