// Package report holds the per-call analysis result and its writers.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/1homsi/importrisk/internal/risk"
)

// ParseErrorPrefix starts the message of a report whose source did not parse.
const ParseErrorPrefix = "Code parsing error: "

// VerificationRecord is the fused verdict for one imported package.
type VerificationRecord struct {
	IsValid     bool
	Similarity  float64
	GithubStars *int
	Risk        risk.Level
}

type recordJSON struct {
	IsValid     int        `json:"is_valid"`
	Similarity  float64    `json:"similarity"`
	GithubStars *int       `json:"github_stars"`
	Risk        risk.Level `json:"risk"`
}

// MarshalJSON writes is_valid as 0 or 1 and a missing star count as null.
func (v VerificationRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Similarity:  v.Similarity,
		GithubStars: v.GithubStars,
		Risk:        v.Risk,
	}
	if v.IsValid {
		out.IsValid = 1
	}
	return json.Marshal(out)
}

func (v *VerificationRecord) UnmarshalJSON(b []byte) error {
	var in recordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*v = VerificationRecord{
		IsValid:     in.IsValid != 0,
		Similarity:  in.Similarity,
		GithubStars: in.GithubStars,
		Risk:        in.Risk,
	}
	return nil
}

// AnalysisReport is either a map of package name to verdict, or a single
// error message when the source could not be parsed. Never both.
type AnalysisReport struct {
	Packages map[string]VerificationRecord
	Error    string
}

// ParseFailure builds the error-only report for unparseable source.
func ParseFailure(detail string) AnalysisReport {
	return AnalysisReport{Error: ParseErrorPrefix + detail}
}

// IsError reports whether r carries an error instead of verdicts.
func (r AnalysisReport) IsError() bool { return r.Error != "" }

// Names returns the package names in lexical order.
func (r AnalysisReport) Names() []string {
	names := make([]string, 0, len(r.Packages))
	for name := range r.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary counts packages per risk level.
type Summary struct {
	Total  int `json:"total"`
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

func (r AnalysisReport) Summary() Summary {
	var s Summary
	for _, rec := range r.Packages {
		s.Total++
		switch rec.Risk {
		case risk.Low:
			s.Low++
		case risk.Medium:
			s.Medium++
		case risk.High:
			s.High++
		}
	}
	return s
}

// MaxRisk returns the highest verdict in r, or zero for an empty or error
// report.
func (r AnalysisReport) MaxRisk() risk.Level {
	var top risk.Level
	for _, rec := range r.Packages {
		if rec.Risk.Value() > top.Value() {
			top = rec.Risk
		}
	}
	return top
}

// Reaches reports whether any package is at or above threshold.
func (r AnalysisReport) Reaches(threshold risk.Level) bool {
	return threshold.Value() > 0 && r.MaxRisk().Value() >= threshold.Value()
}

// MarshalJSON writes {"error": "..."} or the flat package map ({} when empty).
func (r AnalysisReport) MarshalJSON() ([]byte, error) {
	if r.IsError() {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	if r.Packages == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Packages)
}

// UnmarshalJSON accepts both shapes. A sole "error" key holding a string is
// the error form; a package that happens to be named "error" holds an object.
func (r *AnalysisReport) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if msg, ok := raw["error"]; ok && len(raw) == 1 {
		trimmed := bytes.TrimSpace(msg)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return err
			}
			*r = AnalysisReport{Error: s}
			return nil
		}
	}

	pkgs := make(map[string]VerificationRecord, len(raw))
	for name, v := range raw {
		var rec VerificationRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("package %q: %w", name, err)
		}
		pkgs[name] = rec
	}
	*r = AnalysisReport{Packages: pkgs}
	return nil
}
