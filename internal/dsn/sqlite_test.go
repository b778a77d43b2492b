// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"testing"
)

func TestSQLiteResolver_Parse(t *testing.T) {
	resolver := NewSQLiteResolver()

	tests := []struct {
		name        string
		dsn         string
		wantPath    string
		wantParams  map[string]string
		expectError bool
	}{
		{
			name:     "sqlite scheme with absolute path",
			dsn:      "sqlite:///var/data/sales.db",
			wantPath: "/var/data/sales.db",
		},
		{
			name:     "sqlite scheme with relative path",
			dsn:      "sqlite://demo.db",
			wantPath: "demo.db",
		},
		{
			name:     "file uri with pragma",
			dsn:      "file:/tmp/x.sqlite?_pragma=busy_timeout(5000)",
			wantPath: "/tmp/x.sqlite",
			wantParams: map[string]string{
				"_pragma": "busy_timeout(5000)",
			},
		},
		{
			name:     "bare path",
			dsn:      "./local.db",
			wantPath: "./local.db",
		},
		{
			name:     "in-memory",
			dsn:      "file::memory:",
			wantPath: ":memory:",
		},
		{
			name:        "missing path",
			dsn:         "sqlite://",
			expectError: true,
		},
		{
			name:        "empty",
			dsn:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := resolver.Parse(tt.dsn)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Database != tt.wantPath {
				t.Errorf("path = %q, want %q", info.Database, tt.wantPath)
			}
			for key, wantVal := range tt.wantParams {
				if got := info.Params[key]; got != wantVal {
					t.Errorf("param %q = %q, want %q", key, got, wantVal)
				}
			}
		})
	}
}

func TestSQLiteResolver_Normalize(t *testing.T) {
	resolver := NewSQLiteResolver()

	info, err := resolver.Parse("sqlite:///tmp/sales.db?mode=ro")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	normalized, err := resolver.Normalize(info)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if normalized != "file:/tmp/sales.db?mode=ro" {
		t.Errorf("normalized = %q", normalized)
	}

	info2, err := resolver.Parse(normalized)
	if err != nil {
		t.Fatalf("normalized DSN failed to parse: %v", err)
	}
	if info2.Database != info.Database || info2.Params["mode"] != "ro" {
		t.Errorf("round trip mismatch: %+v", info2)
	}
}
