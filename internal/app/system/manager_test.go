package system

import (
	"context"
	"errors"
	"testing"
)

// fakeService records its lifecycle calls into a shared trace.
type fakeService struct {
	name     string
	startErr error
	stopErr  error
	trace    *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(context.Context) error {
	*s.trace = append(*s.trace, "start "+s.name)
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	*s.trace = append(*s.trace, "stop "+s.name)
	return s.stopErr
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	m := NewManager()
	var trace []string
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&fakeService{name: name, trace: &trace}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(trace) != len(want) {
		t.Fatalf("trace %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace %v, want %v", trace, want)
		}
	}
}

func TestManagerRollsBackFailedStart(t *testing.T) {
	m := NewManager()
	var trace []string
	if err := m.Register(&fakeService{name: "a", trace: &trace}); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	boom := errors.New("boom")
	if err := m.Register(&fakeService{name: "b", startErr: boom, trace: &trace}); err != nil {
		t.Fatalf("Register b: %v", err)
	}

	ctx := context.Background()
	if err := m.Start(ctx); !errors.Is(err, boom) {
		t.Fatalf("Start: %v, want %v", err, boom)
	}
	want := []string{"start a", "start b", "stop a"}
	if len(trace) != len(want) || trace[2] != "stop a" {
		t.Fatalf("trace %v, want %v", trace, want)
	}

	// Nothing is running, so Stop is a no-op.
	trace = trace[:0]
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(trace) != 0 {
		t.Fatalf("expected no stop calls, got %v", trace)
	}
}

func TestManagerRegistrationRules(t *testing.T) {
	m := NewManager()
	var trace []string
	if err := m.Register(&fakeService{name: "a", trace: &trace}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(&fakeService{name: "a", trace: &trace}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Register(&fakeService{name: "b", trace: &trace}); err == nil {
		t.Fatal("expected registration after start to be rejected")
	}
}
