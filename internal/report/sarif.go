package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/1homsi/importrisk/internal/risk"
)

const (
	RuleTyposquat    = "IMPORTRISK001"
	RuleUnverified   = "IMPORTRISK002"
	RuleLowTraction  = "IMPORTRISK003"
	sarifSchema      = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifInformation = "https://github.com/1homsi/importrisk"
)

type sarifOutput struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level   string       `json:"level"`
	Message sarifMessage `json:"message"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

// SARIFOptions names the analyzed file and the producing tool version.
type SARIFOptions struct {
	ArtifactURI string
	ToolVersion string
}

// WriteSARIF emits one result per medium or high package. A parse-error
// report produces a failed invocation with no results.
func WriteSARIF(w io.Writer, r AnalysisReport, opts SARIFOptions) error {
	rules := []sarifRule{
		{ID: RuleTyposquat, Name: "LikelyTyposquat", ShortDescription: sarifMessage{Text: "Unregistered package name closely resembles a known package"}},
		{ID: RuleUnverified, Name: "UnverifiedPackage", ShortDescription: sarifMessage{Text: "Package could not be verified in its registry"}},
		{ID: RuleLowTraction, Name: "LowTractionPackage", ShortDescription: sarifMessage{Text: "Registered package has little community traction"}},
	}

	results := []sarifResult{}
	for _, name := range r.Names() {
		rec := r.Packages[name]
		res, ok := sarifResultFor(name, rec)
		if !ok {
			continue
		}
		if opts.ArtifactURI != "" {
			res.Locations = []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: opts.ArtifactURI}},
			}}
		}
		results = append(results, res)
	}

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:           "importrisk",
				Version:        opts.ToolVersion,
				InformationURI: sarifInformation,
				Rules:          rules,
			},
		},
		Results: results,
	}
	if r.IsError() {
		run.Invocations = []sarifInvocation{{
			ExecutionSuccessful:        false,
			ToolExecutionNotifications: []sarifNotification{{Level: "error", Message: sarifMessage{Text: r.Error}}},
		}}
	}

	out := sarifOutput{
		Version: "2.1.0",
		Schema:  sarifSchema,
		Runs:    []sarifRun{run},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func sarifResultFor(name string, rec VerificationRecord) (sarifResult, bool) {
	props := map[string]any{
		"is_valid":   rec.IsValid,
		"similarity": rec.Similarity,
	}
	if rec.GithubStars != nil {
		props["github_stars"] = *rec.GithubStars
	}

	switch {
	case rec.Risk == risk.High:
		return sarifResult{
			RuleID:     RuleTyposquat,
			Level:      "error",
			Message:    sarifMessage{Text: fmt.Sprintf("Package %s is not registered and resembles a known package (similarity=%.2f)", name, rec.Similarity)},
			Properties: props,
		}, true
	case rec.Risk == risk.Medium && !rec.IsValid:
		return sarifResult{
			RuleID:     RuleUnverified,
			Level:      "warning",
			Message:    sarifMessage{Text: fmt.Sprintf("Package %s could not be found in its registry", name)},
			Properties: props,
		}, true
	case rec.Risk == risk.Medium:
		stars := "unknown"
		if rec.GithubStars != nil {
			stars = fmt.Sprintf("%d", *rec.GithubStars)
		}
		return sarifResult{
			RuleID:     RuleLowTraction,
			Level:      "warning",
			Message:    sarifMessage{Text: fmt.Sprintf("Package %s has low community traction (stars=%s)", name, stars)},
			Properties: props,
		}, true
	default:
		return sarifResult{}, false
	}
}
