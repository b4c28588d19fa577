// Package pipeline holds the deal stage enumeration, the fixed
// stage-to-probability table and the in-memory pipeline metrics.
package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is a deal pipeline stage.
type Stage string

const (
	StageLead        Stage = "lead"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageClosedWon   Stage = "closed_won"
	StageClosedLost  Stage = "closed_lost"
)

// Stages lists every stage in board display order.
var Stages = []Stage{
	StageLead,
	StageQualified,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
}

var defaultProbability = map[Stage]int{
	StageLead:        10,
	StageQualified:   25,
	StageProposal:    50,
	StageNegotiation: 75,
	StageClosedWon:   100,
	StageClosedLost:  0,
}

// ErrUnknownStage is returned for stage names outside the enumeration.
type ErrUnknownStage struct {
	Stage string
}

func (e *ErrUnknownStage) Error() string {
	return fmt.Sprintf("unknown pipeline stage %q", e.Stage)
}

// ParseStage validates a stage name. Matching is case-insensitive and
// tolerates spaces ("Closed Won").
func ParseStage(s string) (Stage, error) {
	norm := Stage(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	if _, ok := defaultProbability[norm]; !ok {
		return "", &ErrUnknownStage{Stage: s}
	}
	return norm, nil
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := defaultProbability[s]
	return ok
}

// Label returns the display label, e.g. "Closed Won".
func (s Stage) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// DefaultProbability returns the win probability percentage assigned to a
// deal when it enters stage.
func DefaultProbability(stage Stage) (int, error) {
	p, ok := defaultProbability[stage]
	if !ok {
		return 0, &ErrUnknownStage{Stage: string(stage)}
	}
	return p, nil
}

// IsClosed reports whether the stage ends the deal.
func IsClosed(stage Stage) bool {
	return stage == StageClosedWon || stage == StageClosedLost
}
