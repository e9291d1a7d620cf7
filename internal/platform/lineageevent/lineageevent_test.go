package lineageevent

import (
	"testing"
	"time"
)

func validEvent() Event {
	return Event{
		OccurredAt:  time.Unix(1787000000, 0).UTC(),
		Actor:       "alice",
		SubjectType: "run",
		SubjectID:   "run-123",
		Predicate:   PredicateRegisteredIn,
		ObjectType:  "experiment",
		ObjectID:    "exp-1",
	}
}

func TestEventValidate(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	mutations := map[string]func(*Event){
		"occurred at": func(e *Event) { e.OccurredAt = time.Time{} },
		"actor":       func(e *Event) { e.Actor = " " },
		"subject":     func(e *Event) { e.SubjectID = "" },
		"predicate":   func(e *Event) { e.Predicate = "" },
		"object":      func(e *Event) { e.ObjectID = "" },
	}
	for name, mutate := range mutations {
		event := validEvent()
		mutate(&event)
		if err := event.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestComputeIntegritySHA256(t *testing.T) {
	a, err := computeIntegritySHA256(validEvent(), []byte(`{"run_dir":"2026-08-26_14-03-59"}`))
	if err != nil {
		t.Fatalf("computeIntegritySHA256() err=%v", err)
	}
	b, err := computeIntegritySHA256(validEvent(), []byte(`{"run_dir":"2026-08-26_14-03-59"}`))
	if err != nil {
		t.Fatalf("computeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}

	other := validEvent()
	other.Predicate = PredicateExpandedFrom
	c, err := computeIntegritySHA256(other, []byte(`{"run_dir":"2026-08-26_14-03-59"}`))
	if err != nil {
		t.Fatalf("computeIntegritySHA256() err=%v", err)
	}
	if a == c {
		t.Fatalf("expected integrity to differ across predicates")
	}
}
