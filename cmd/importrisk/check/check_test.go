package check

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/app/apptest"
	"github.com/1homsi/importrisk/internal/report"
	"github.com/1homsi/importrisk/internal/risk"
)

func TestRun(t *testing.T) {
	a := apptest.New(t, apptest.Registry{NPM: []string{"express"}})

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), a, Options{
		Packages:  []string{"express", " express", "expresss-fake-zz"},
		Ecosystem: "npm",
		JSON:      true,
	}, &stdout, &stderr)
	if code != app.ExitOK {
		t.Fatalf("Run() = %d, stderr = %s", code, stderr.String())
	}

	var r report.AnalysisReport
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatal(err)
	}
	if len(r.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %v", r.Names())
	}
	if !r.Packages["express"].IsValid {
		t.Error("express should be registered")
	}
	if r.Packages["expresss-fake-zz"].IsValid {
		t.Error("expresss-fake-zz should not be registered")
	}
}

func TestRunFailOnAndText(t *testing.T) {
	a := apptest.New(t, apptest.Registry{})

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), a, Options{Packages: []string{"not_a_real_pkg"}, Ecosystem: "python", FailOn: "medium"}, &stdout, &stderr)
	if code != app.ExitFail {
		t.Errorf("Run() = %d, want %d", code, app.ExitFail)
	}
	if !strings.Contains(stdout.String(), strings.ToUpper(risk.Medium.String())) {
		t.Errorf("expected text table, got:\n%s", stdout.String())
	}
}

func TestRunBadFlags(t *testing.T) {
	a := apptest.New(t, apptest.Registry{})
	var stdout, stderr bytes.Buffer
	if code := Run(context.Background(), a, Options{Packages: []string{"x"}, Ecosystem: "cargo"}, &stdout, &stderr); code != app.ExitUsage {
		t.Errorf("unknown ecosystem: Run() = %d, want %d", code, app.ExitUsage)
	}
	if code := Run(context.Background(), a, Options{Packages: []string{"x"}, Ecosystem: "python", FailOn: "severe"}, &stdout, &stderr); code != app.ExitUsage {
		t.Errorf("bad fail-on: Run() = %d, want %d", code, app.ExitUsage)
	}
}
