package controller

// State is the stage a window has reached.
type State int

const (
	Idle State = iota
	GeneratingFacts
	GeneratingAssociations
	Committing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GeneratingFacts:
		return "generating_facts"
	case GeneratingAssociations:
		return "generating_associations"
	case Committing:
		return "committing"
	case Done:
		return "done"
	}
	return "unknown"
}

// A failed attempt goes back to Idle from any stage to be retried.
var transitions = map[State][]State{
	Idle:                   {GeneratingFacts, Done},
	GeneratingFacts:        {GeneratingAssociations, Idle},
	GeneratingAssociations: {Committing, Idle},
	Committing:             {Idle, Done},
	Done:                   {},
}

func canTransition(from State, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
