package registry

import "fmt"

// objectState is the liveness of a registered object. It has the following
// transitions:
// ∅     → Alive
// Alive → Dead
// Dead  → Dead
//
// An object becomes dead when a destructor addressed to it has been applied,
// or when its connection is torn down. A dead object stays in the registry
// until Remove is called, so messages racing with its destruction are
// reported against a known id rather than an unknown one.
type objectState string

const (
	// Alive objects accept messages.
	objectStateAlive objectState = "alive"
	// Dead objects accept nothing; their id may be reused once removed.
	objectStateDead objectState = "dead"
)

var validTransitions = map[objectState][]objectState{
	objectStateAlive: {
		objectStateDead,
	},
	objectStateDead: {
		objectStateDead,
	},
}

func (s *objectState) canTransitionTo(state objectState) error {
	for _, target := range validTransitions[*s] {
		if target == state {
			return nil
		}
	}
	return fmt.Errorf("unable to transition from %s to %s", *s, state)
}

func (s *objectState) transitionTo(state objectState) error {
	if err := s.canTransitionTo(state); err != nil {
		return err
	}
	*s = state
	return nil
}
