package infra

import (
	"context"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid marker",
			query:  "--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect 1;",
			marker: "0f0557a2-1731-4fc6-8cbe-8540b1d2b6df",
			body:   "select 1;",
		},
		{
			name:   "leading whitespace",
			query:  "\n  --sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect 1;\n",
			marker: "0f0557a2-1731-4fc6-8cbe-8540b1d2b6df",
			body:   "select 1;",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "bad uuid", query: "--sql not-a-uuid\nselect 1;", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := ExtractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractMarker error: %v", err)
			}
			if marker != tc.marker || body != tc.body {
				t.Fatalf("ExtractMarker() = %q, %q; want %q, %q", marker, body, tc.marker, tc.body)
			}
		})
	}
}

func TestSQLDBRejectsUnmarkedQuery(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	runner := NewSQLDB(db, NopLogger())
	if _, err := runner.Exec(context.Background(), "select 1"); err == nil {
		t.Fatalf("expected marker error")
	}
	var one int
	if err := runner.QueryRow(context.Background(), "--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect 1").Scan(&one); err != nil {
		t.Fatalf("QueryRow: %v", err)
	}
	if one != 1 {
		t.Fatalf("got %d, want 1", one)
	}
}
