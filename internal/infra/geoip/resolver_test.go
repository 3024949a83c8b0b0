package geoip

import (
	"errors"
	"testing"
)

func TestOpenWithoutPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil resolver for empty path")
	}
	if r.Lookup() != nil {
		t.Fatalf("nil resolver must not provide a lookup")
	}
	if _, err := r.CountryCode("203.0.113.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode error = %v, want ErrUnavailable", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil resolver: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatalf("expected error for missing database")
	}
}
