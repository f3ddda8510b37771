package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/1homsi/importrisk/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func sampleReport() AnalysisReport {
	return AnalysisReport{Packages: map[string]VerificationRecord{
		"os":                   {IsValid: true, Similarity: 1, GithubStars: nil, Risk: risk.Low},
		"totally_fake_pkg_xyz": {IsValid: false, Similarity: 0.12, GithubStars: nil, Risk: risk.Medium},
		"reqeusts":             {IsValid: false, Similarity: 0.81, GithubStars: intPtr(3), Risk: risk.High},
		"tinylib":              {IsValid: true, Similarity: 0.2, GithubStars: intPtr(10), Risk: risk.Medium},
	}}
}

func TestVerificationRecordJSONShape(t *testing.T) {
	b, err := json.Marshal(VerificationRecord{IsValid: true, Similarity: 0.5, Risk: risk.Low})
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_valid":1,"similarity":0.5,"github_stars":null,"risk":"low"}`, string(b))

	b, err = json.Marshal(VerificationRecord{IsValid: false, Similarity: 0.9, GithubStars: intPtr(1000), Risk: risk.High})
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_valid":0,"similarity":0.9,"github_stars":1000,"risk":"high"}`, string(b))
}

func TestAnalysisReportJSON(t *testing.T) {
	b, err := json.Marshal(sampleReport())
	require.NoError(t, err)

	var generic map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Len(t, generic, 4)
	assert.Equal(t, float64(1), generic["os"]["is_valid"])
	assert.Nil(t, generic["os"]["github_stars"])
	assert.Equal(t, "high", generic["reqeusts"]["risk"])

	var back AnalysisReport
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, sampleReport(), back)
}

func TestErrorReportHasOnlyErrorKey(t *testing.T) {
	r := ParseFailure("invalid syntax (line 1, column 8)")
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Equal(t, map[string]any{"error": "Code parsing error: invalid syntax (line 1, column 8)"}, generic)

	var back AnalysisReport
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.IsError())
	assert.Nil(t, back.Packages)
}

func TestPackageNamedErrorIsNotAnErrorReport(t *testing.T) {
	in := `{"error":{"is_valid":1,"similarity":0.3,"github_stars":null,"risk":"low"}}`
	var r AnalysisReport
	require.NoError(t, json.Unmarshal([]byte(in), &r))
	assert.False(t, r.IsError())
	assert.Contains(t, r.Packages, "error")
}

func TestEmptyReportIsEmptyObject(t *testing.T) {
	b, err := json.Marshal(AnalysisReport{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestSummaryAndThresholds(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, Summary{Total: 4, Low: 1, Medium: 2, High: 1}, r.Summary())
	assert.Equal(t, risk.High, r.MaxRisk())
	assert.True(t, r.Reaches(risk.High))
	assert.Equal(t, []string{"os", "reqeusts", "tinylib", "totally_fake_pkg_xyz"}, r.Names())

	low := AnalysisReport{Packages: map[string]VerificationRecord{"os": {IsValid: true, Risk: risk.Low}}}
	assert.False(t, low.Reaches(risk.Medium))
	assert.True(t, low.Reaches(risk.Low))
	assert.False(t, ParseFailure("x").Reaches(risk.Low))
	assert.False(t, low.Reaches(0))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"os\": {") {
		t.Errorf("expected indented output, got:\n%s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, sampleReport())
	out := buf.String()

	for _, want := range []string{"Import Risk Report", "reqeusts", "HIGH", "MEDIUM", "LOW", "4 packages"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Index(out, "os ") > strings.Index(out, "totally_fake_pkg_xyz") {
		t.Error("packages should be listed in name order")
	}
}

func TestWriteTextError(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, ParseFailure("invalid syntax (line 2, column 1)"))
	if !strings.Contains(buf.String(), "Code parsing error") {
		t.Errorf("expected error message, got %q", buf.String())
	}
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSARIF(&buf, sampleReport(), SARIFOptions{ArtifactURI: "main.py", ToolVersion: "1.2.3"})
	require.NoError(t, err)

	var out sarifOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "2.1.0", out.Version)
	require.Len(t, out.Runs, 1)
	run := out.Runs[0]
	assert.Equal(t, "1.2.3", run.Tool.Driver.Version)
	assert.Len(t, run.Tool.Driver.Rules, 3)

	rules := map[string]string{}
	for _, res := range run.Results {
		rules[res.RuleID] = res.Level
		require.Len(t, res.Locations, 1)
		assert.Equal(t, "main.py", res.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	}
	assert.Len(t, run.Results, 3, "low-risk packages produce no result")
	assert.Equal(t, map[string]string{
		RuleTyposquat:   "error",
		RuleUnverified:  "warning",
		RuleLowTraction: "warning",
	}, rules)
}

func TestWriteSARIFParseError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, ParseFailure("bad"), SARIFOptions{}))

	var out sarifOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	run := out.Runs[0]
	assert.Empty(t, run.Results)
	require.Len(t, run.Invocations, 1)
	assert.False(t, run.Invocations[0].ExecutionSuccessful)
}
