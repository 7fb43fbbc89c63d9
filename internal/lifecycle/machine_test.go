package lifecycle

import (
	"errors"
	"testing"
)

func testSchema(t *testing.T) Schema[int] {
	t.Helper()
	s, err := NewSchema("test",
		map[int]string{0: "draft", 1: "active", 2: "closed"},
		[]Rule[int]{
			{From: 0, To: 1, Trigger: "activate", SideEffect: EffectSetPayTime},
			{From: 1, To: 2, Trigger: "close"},
		},
		[]int{0},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func TestStepAcceptsTableEdges(t *testing.T) {
	s := testSchema(t)
	rule, err := s.Step(0, 1)
	if err != nil {
		t.Fatalf("Step(0,1): %v", err)
	}
	if rule.Trigger != "activate" || rule.SideEffect != EffectSetPayTime {
		t.Fatalf("unexpected rule %+v", rule)
	}
}

func TestStepRejectsAbsentEdges(t *testing.T) {
	s := testSchema(t)
	cases := []struct {
		name     string
		from, to int
	}{
		{"skip", 0, 2},
		{"backward", 2, 1},
		{"self loop", 1, 1},
		{"unknown target", 1, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Step(tc.from, tc.to)
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("Step(%d,%d) err = %v, want TransitionError", tc.from, tc.to, err)
			}
			if te.Schema != "test" {
				t.Fatalf("schema = %q", te.Schema)
			}
		})
	}
}

func TestDeletableAndTerminal(t *testing.T) {
	s := testSchema(t)
	if !s.Deletable(0) {
		t.Fatal("state 0 should be deletable")
	}
	if s.Deletable(1) || s.Deletable(2) {
		t.Fatal("only state 0 is deletable")
	}
	if s.Terminal(0) || s.Terminal(1) {
		t.Fatal("states with outgoing rules are not terminal")
	}
	if !s.Terminal(2) {
		t.Fatal("state 2 is terminal")
	}
}

func TestNewSchemaRejectsBadConfig(t *testing.T) {
	labels := map[int]string{0: "a", 1: "b"}
	cases := []struct {
		name      string
		rules     []Rule[int]
		deletable []int
	}{
		{"unknown from", []Rule[int]{{From: 7, To: 1}}, nil},
		{"unknown to", []Rule[int]{{From: 0, To: 7}}, nil},
		{"self loop", []Rule[int]{{From: 1, To: 1}}, nil},
		{"duplicate edge", []Rule[int]{{From: 0, To: 1}, {From: 0, To: 1}}, nil},
		{"unknown deletable", nil, []int{5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSchema("bad", labels, tc.rules, tc.deletable); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestLabelFallsBackToCode(t *testing.T) {
	s := testSchema(t)
	if got := s.Label(1); got != "active" {
		t.Fatalf("Label(1) = %q", got)
	}
	if got := s.Label(42); got != "42" {
		t.Fatalf("Label(42) = %q", got)
	}
}
