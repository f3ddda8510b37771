package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/app/apptest"
)

func TestRunJSON(t *testing.T) {
	a := apptest.New(t, apptest.Registry{PyPI: map[string]string{
		"beautifulsoup4": `{"info":{"top_level":["bs4"]}}`,
	}})

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), a, Options{Packages: []string{"beautifulsoup4", "nope_zz"}, Ecosystem: "python", JSON: true}, &stdout, &stderr)
	if code != app.ExitFail {
		t.Errorf("Run() = %d, want %d", code, app.ExitFail)
	}

	var entries []Entry
	if err := json.Unmarshal(stdout.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout.String())
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != "found" || len(entries[0].Subpackages) != 1 || entries[0].Subpackages[0] != "bs4" {
		t.Errorf("beautifulsoup4 entry = %+v", entries[0])
	}
	if entries[1].Status != "not_found" || entries[1].StatusCode != 404 {
		t.Errorf("nope_zz entry = %+v", entries[1])
	}
}

func TestRunText(t *testing.T) {
	a := apptest.New(t, apptest.Registry{PyPI: map[string]string{"requests": `{"info":{"top_level":"requests"}}`}})

	var stdout, stderr bytes.Buffer
	if code := Run(context.Background(), a, Options{Packages: []string{"requests"}, Ecosystem: "pypi"}, &stdout, &stderr); code != app.ExitOK {
		t.Fatalf("Run() = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "provides: requests") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestRunUnknownEcosystem(t *testing.T) {
	a := apptest.New(t, apptest.Registry{})
	var stdout, stderr bytes.Buffer
	if code := Run(context.Background(), a, Options{Packages: []string{"x"}, Ecosystem: "gem"}, &stdout, &stderr); code != app.ExitUsage {
		t.Errorf("Run() = %d, want %d", code, app.ExitUsage)
	}
}
