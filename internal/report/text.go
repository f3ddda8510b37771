package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/1homsi/importrisk/internal/risk"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
)

func riskColor(level risk.Level) string {
	switch level {
	case risk.High:
		return colorRed
	case risk.Medium:
		return colorYellow
	default:
		return colorGreen
	}
}

// WriteText prints a colored table of verdicts, one package per line.
func WriteText(w io.Writer, r AnalysisReport) {
	fmt.Fprintf(w, "%s%s=== Import Risk Report ===%s\n\n", colorBold, colorCyan, colorReset)

	if r.IsError() {
		fmt.Fprintf(w, "%s%s✗ %s%s\n", colorBold, colorRed, r.Error, colorReset)
		return
	}
	if len(r.Packages) == 0 {
		fmt.Fprintln(w, "no imports found")
		return
	}

	fmt.Fprintf(w, "%-32s %-8s %-10s %-7s %s\n", "PACKAGE", "RISK", "REGISTERED", "SIM", "STARS")
	for _, name := range r.Names() {
		rec := r.Packages[name]
		registered := "no"
		if rec.IsValid {
			registered = "yes"
		}
		stars := "-"
		if rec.GithubStars != nil {
			stars = fmt.Sprintf("%d", *rec.GithubStars)
		}
		fmt.Fprintf(w, "%s%-32s%s %s%-8s%s %-10s %-7.2f %s\n",
			colorBold, name, colorReset,
			riskColor(rec.Risk), strings.ToUpper(rec.Risk.String()), colorReset,
			registered, rec.Similarity, stars,
		)
	}

	s := r.Summary()
	fmt.Fprintf(w, "\n%d packages: %s%d high%s, %s%d medium%s, %s%d low%s\n",
		s.Total,
		colorRed, s.High, colorReset,
		colorYellow, s.Medium, colorReset,
		colorGreen, s.Low, colorReset,
	)
}
