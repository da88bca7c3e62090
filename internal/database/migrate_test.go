package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

type fakeVersionStore struct {
	applied map[string]bool
}

func newFakeVersionStore() *fakeVersionStore {
	return &fakeVersionStore{applied: map[string]bool{}}
}

func (s *fakeVersionStore) HasApplied(_ context.Context, id string) (bool, error) {
	return s.applied[id], nil
}

func (s *fakeVersionStore) RecordApplied(_ context.Context, id string) error {
	s.applied[id] = true
	return nil
}

func countingStep(id string, runs *[]string) migration {
	return migration{
		ID: id,
		Run: func(context.Context, *sql.DB) error {
			*runs = append(*runs, id)
			return nil
		},
	}
}

func TestRunMigrationsAppliesInOrder(t *testing.T) {
	store := newFakeVersionStore()
	var runs []string
	steps := []migration{
		countingStep("001_a", &runs),
		countingStep("002_b", &runs),
		countingStep("003_c", &runs),
	}

	if err := runMigrations(context.Background(), store, steps, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"001_a", "002_b", "003_c"}
	if len(runs) != len(want) {
		t.Fatalf("ran %d steps, want %d", len(runs), len(want))
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("step %d: ran %s, want %s", i, runs[i], want[i])
		}
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	store := newFakeVersionStore()
	var runs []string
	steps := []migration{
		countingStep("001_a", &runs),
		countingStep("002_b", &runs),
	}

	for i := 0; i < 2; i++ {
		if err := runMigrations(context.Background(), store, steps, nil); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i+1, err)
		}
	}
	if len(runs) != 2 {
		t.Errorf("steps ran %d times total, want 2 (second invocation must be a no-op)", len(runs))
	}
}

func TestRunMigrationsSkipsRecordedSteps(t *testing.T) {
	store := newFakeVersionStore()
	store.applied["001_a"] = true
	var runs []string
	steps := []migration{
		countingStep("001_a", &runs),
		countingStep("002_b", &runs),
	}

	if err := runMigrations(context.Background(), store, steps, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0] != "002_b" {
		t.Errorf("ran %v, want only 002_b", runs)
	}
}

func TestRunMigrationsStopsAtFirstFailure(t *testing.T) {
	store := newFakeVersionStore()
	var runs []string
	boom := errors.New("boom")
	steps := []migration{
		countingStep("001_a", &runs),
		{ID: "002_broken", Run: func(context.Context, *sql.DB) error { return boom }},
		countingStep("003_c", &runs),
	}

	err := runMigrations(context.Background(), store, steps, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap step failure: %v", err)
	}
	if !strings.Contains(err.Error(), "002_broken") {
		t.Errorf("error does not name the failed step: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("later steps ran after failure: %v", runs)
	}
	if store.applied["002_broken"] {
		t.Error("failed step must not be recorded as applied")
	}

	// Retry after the failure is fixed: only the unrecorded steps run.
	steps[1].Run = func(context.Context, *sql.DB) error {
		runs = append(runs, "002_broken")
		return nil
	}
	if err := runMigrations(context.Background(), store, steps, nil); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	want := []string{"001_a", "002_broken", "003_c"}
	if len(runs) != len(want) {
		t.Fatalf("after retry ran %v, want %v", runs, want)
	}
}

func TestMigrationIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range migrations() {
		if seen[m.ID] {
			t.Errorf("duplicate migration id %s", m.ID)
		}
		seen[m.ID] = true
	}
}
