package sniff

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"import os\nprint(os.name)", "python"},
		{"const fs = require('fs');", "javascript"},
		{"SELECT * FROM t;", "unknown"},
	}
	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		if code := Run("-", strings.NewReader(tt.input), &stdout, &stderr); code != 0 {
			t.Fatalf("Run() = %d", code)
		}
		if got := strings.TrimSpace(stdout.String()); got != tt.want {
			t.Errorf("Run(%q) printed %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRunMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run(filepath.Join(t.TempDir(), "missing.js"), nil, &stdout, &stderr); code != 2 {
		t.Errorf("Run() = %d, want 2", code)
	}
}
