package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator_IssuesV7(t *testing.T) {
	gen := NewUUIDGenerator()
	first, err := gen.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	parsed, err := uuid.Parse(first)
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}

	second, _ := gen.NewID()
	if first == second {
		t.Fatalf("expected distinct ids")
	}
}
