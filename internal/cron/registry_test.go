package cron

import (
	"context"
	"reflect"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "a"})
	jobB := &stubJob{name: "b"}
	if err := registry.Register(jobB); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := registry.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected names %v", got)
	}
	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "inbox-retention"})
	if err := registry.Register(&stubJob{name: "inbox-retention"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if len(registry.Jobs()) != 1 {
		t.Fatalf("duplicate must not be stored")
	}
}
