package multi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crimson-sun/factcheck/internal/model"
)

// mockOutput records calls for test assertions.
type mockOutput struct {
	records []model.Record
	closed  bool
	err     error // if set, Write and Close return this error
}

func (m *mockOutput) Write(_ context.Context, rec model.Record) error {
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockOutput) Close() error {
	m.closed = true
	return m.err
}

func testRecord(kind model.RecordKind, step int) model.Record {
	return model.Record{
		RunID:     "run-1",
		Kind:      kind,
		Timestamp: time.Now(),
		Step:      step,
	}
}

func TestFanOutDeliversToAll(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	c := &mockOutput{}
	m := New(a, b, c)

	if err := m.Write(context.Background(), testRecord(model.KindEval, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, out := range []*mockOutput{a, b, c} {
		if len(out.records) != 1 {
			t.Fatalf("output %d: got %d records, want 1", i, len(out.records))
		}
		if out.records[0].Kind != model.KindEval {
			t.Errorf("output %d: got kind %q, want %q", i, out.records[0].Kind, model.KindEval)
		}
	}
}

func TestErrorDoesNotPreventDelivery(t *testing.T) {
	failing := &mockOutput{err: errors.New("disk full")}
	healthy := &mockOutput{}
	m := New(failing, healthy)

	err := m.Write(context.Background(), testRecord(model.KindCheckpoint, 4))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(healthy.records) != 1 {
		t.Fatalf("healthy output got %d records, want 1", len(healthy.records))
	}
	if len(failing.records) != 1 {
		t.Fatalf("failing output got %d records, want 1", len(failing.records))
	}
}

func TestCloseCallsAllOutputs(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	m := New(a, b)

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.closed || !b.closed {
		t.Errorf("Close not called on all outputs: a=%v b=%v", a.closed, b.closed)
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	errA := errors.New("err-a")
	errB := errors.New("err-b")
	a := &mockOutput{err: errA}
	b := &mockOutput{err: errB}
	m := New(a, b)

	err := m.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close should be called on all outputs even when errors occur")
	}
}
