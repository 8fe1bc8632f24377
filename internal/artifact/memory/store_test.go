package memory

import (
	"context"
	"testing"
)

func TestPutStoresBodyAndReturnsURI(t *testing.T) {
	t.Parallel()

	s := New()
	uri, err := s.Put(context.Background(), "pages/a.html", "text/html", []byte("<html>a</html>"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if uri != "memory://pages/a.html" {
		t.Fatalf("unexpected uri %s", uri)
	}
	body, ok := s.Get("pages/a.html")
	if !ok || string(body) != "<html>a</html>" {
		t.Fatalf("expected stored body, got %q ok=%v", body, ok)
	}
}
