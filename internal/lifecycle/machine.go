// Package lifecycle implements a transition-table state machine. A
// machine is data, not code: each deployment schema (current and legacy
// order status sets, influence activity states) is a Schema value, so
// adding a schema is configuration rather than a new implementation.
package lifecycle

import "fmt"

// Rule is one accepted edge of the transition table. SideEffect names a
// hook the caller applies on the entity when the edge fires (the machine
// itself never touches entities).
type Rule[S comparable] struct {
	From       S
	To         S
	Trigger    string
	SideEffect string
}

// Side-effect hooks understood by callers.
const (
	EffectNone       = ""
	EffectSetPayTime = "set_pay_time"
)

// Schema is the full lifecycle configuration for one entity kind: the
// closed state set with display labels, the accepted edges, and the
// states from which deletion is permitted. State codes are numeric for
// orders and symbolic for influence records, hence the type parameter.
type Schema[S comparable] struct {
	Name          string
	Labels        map[S]string
	Rules         []Rule[S]
	DeletableFrom map[S]bool
}

// TransitionError reports a rejected edge with both endpoints, so the
// transport layer can surface what was attempted against what is held.
type TransitionError struct {
	Schema string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s (schema %s)", e.From, e.To, e.Schema)
}

// NewSchema validates that every rule endpoint and deletable state is a
// member of the label set. A schema with a dangling code is a
// configuration bug and refuses to load.
func NewSchema[S comparable](name string, labels map[S]string, rules []Rule[S], deletableFrom []S) (Schema[S], error) {
	s := Schema[S]{
		Name:          name,
		Labels:        labels,
		Rules:         rules,
		DeletableFrom: make(map[S]bool, len(deletableFrom)),
	}
	seen := make(map[[2]S]bool, len(rules))
	for _, r := range rules {
		if _, ok := labels[r.From]; !ok {
			return Schema[S]{}, fmt.Errorf("schema %s: rule from unknown state %v", name, r.From)
		}
		if _, ok := labels[r.To]; !ok {
			return Schema[S]{}, fmt.Errorf("schema %s: rule to unknown state %v", name, r.To)
		}
		if r.From == r.To {
			return Schema[S]{}, fmt.Errorf("schema %s: self-loop on %v", name, r.From)
		}
		edge := [2]S{r.From, r.To}
		if seen[edge] {
			return Schema[S]{}, fmt.Errorf("schema %s: duplicate rule %v -> %v", name, r.From, r.To)
		}
		seen[edge] = true
	}
	for _, st := range deletableFrom {
		if _, ok := labels[st]; !ok {
			return Schema[S]{}, fmt.Errorf("schema %s: deletable unknown state %v", name, st)
		}
		s.DeletableFrom[st] = true
	}
	return s, nil
}

// Valid reports whether st belongs to the schema's closed state set.
func (s Schema[S]) Valid(st S) bool {
	_, ok := s.Labels[st]
	return ok
}

// Label returns the display label for a state, falling back to the code.
func (s Schema[S]) Label(st S) string {
	if l, ok := s.Labels[st]; ok {
		return l
	}
	return fmt.Sprintf("%v", st)
}

// Step resolves the rule for (from, to). The table is deterministic: at
// most one rule matches. Anything absent is rejected, never clamped.
func (s Schema[S]) Step(from, to S) (Rule[S], error) {
	for _, r := range s.Rules {
		if r.From == from && r.To == to {
			return r, nil
		}
	}
	return Rule[S]{}, &TransitionError{
		Schema: s.Name,
		From:   fmt.Sprintf("%v", from),
		To:     fmt.Sprintf("%v", to),
	}
}

// Deletable reports whether an entity in state st may be removed.
func (s Schema[S]) Deletable(st S) bool {
	return s.DeletableFrom[st]
}

// Terminal reports whether no rule leads out of st.
func (s Schema[S]) Terminal(st S) bool {
	for _, r := range s.Rules {
		if r.From == st {
			return false
		}
	}
	return true
}
