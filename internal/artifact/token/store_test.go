package token

import (
	"context"
	"strings"
	"testing"
)

func TestPutReturnsOpaqueReference(t *testing.T) {
	t.Parallel()

	s := New()
	ref, err := s.Put(context.Background(), "pages/crawl-1.html", "text/html", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(ref, "path://") {
		t.Fatalf("expected path:// prefix, got %s", ref)
	}
	if len(ref) != len("path://")+50 {
		t.Fatalf("expected 50 token chars, got %d", len(ref)-len("path://"))
	}
}

func TestPutReferencesAreUnique(t *testing.T) {
	t.Parallel()

	s := New()
	a, err := s.Put(context.Background(), "p", "", nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	b, err := s.Put(context.Background(), "p", "", nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if a == b {
		t.Fatalf("expected unique references, got %s twice", a)
	}
}
