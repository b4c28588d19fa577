package pipeline

import "time"

// State is the part of a deal a stage transition rewrites.
type State struct {
	Stage       Stage
	Probability int
	ClosedAt    *time.Time
}

// Transition moves a deal to stage to. Probability is reset to the stage
// default; closed_at is stamped when entering a closed stage and cleared when
// a closed deal is reopened. Moving between the two closed stages restamps it.
// A transition to the current stage returns the state unchanged and false.
func Transition(current State, to Stage, now time.Time) (State, bool, error) {
	prob, err := DefaultProbability(to)
	if err != nil {
		return current, false, err
	}
	if current.Stage == to {
		return current, false, nil
	}

	next := State{Stage: to, Probability: prob}
	if IsClosed(to) {
		t := now.UTC()
		next.ClosedAt = &t
	}
	return next, true, nil
}
