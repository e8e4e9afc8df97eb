// Package lifecycle owns task state. A task moves OPEN -> ASSIGNED ->
// SUBMITTED -> COMPLETED and never backwards; every move is a compare-and-set
// on the stored status so concurrent callers cannot both succeed.
package lifecycle

import "github.com/campusgig/backend/internal/models"

// Operation names, also used as metric and span labels.
const (
	OpCreate   = "create"
	OpApply    = "apply"
	OpAssign   = "assign"
	OpSubmit   = "submit"
	OpComplete = "complete"
)

type Transition struct {
	From string
	To   string
}

// transitions is the complete set of legal status edges.
var transitions = map[string]Transition{
	OpAssign:   {From: models.TaskStatusOpen, To: models.TaskStatusAssigned},
	OpSubmit:   {From: models.TaskStatusAssigned, To: models.TaskStatusSubmitted},
	OpComplete: {From: models.TaskStatusSubmitted, To: models.TaskStatusCompleted},
}

// CanTransition reports whether a task may move directly from one status to another.
func CanTransition(from, to string) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

func transitionFor(op string) Transition {
	t, ok := transitions[op]
	if !ok {
		panic("lifecycle: no transition for " + op)
	}
	return t
}
