// Package risk fuses the registry, similarity and popularity signals of a
// package into a discrete risk level.
package risk

import (
	"fmt"
	"strings"
)

// Level is a discrete risk verdict.
type Level int

const (
	Low Level = iota + 1
	Medium
	High
)

const (
	// SimilarityThreshold is the score above which an unregistered package
	// is treated as an impersonation of a known-good name.
	SimilarityThreshold = 0.7

	// MinStars is the popularity below which a registered package is
	// considered to lack community traction.
	MinStars = 50
)

var levelNames = map[Level]string{
	Low:    "low",
	Medium: "medium",
	High:   "high",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converts "low", "medium" or "high" (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	default:
		return 0, fmt.Errorf("unknown risk level %q; choose low|medium|high", s)
	}
}

// Value orders levels for threshold comparisons; unknown levels rank zero.
func (l Level) Value() int {
	if _, ok := levelNames[l]; !ok {
		return 0
	}
	return int(l)
}

func (l Level) MarshalText() ([]byte, error) {
	if _, ok := levelNames[l]; !ok {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Classify applies the decision table in precedence order, first match wins:
//
//  1. not registered, similarity > 0.7       → High
//  2. not registered                         → Medium
//  3. registered, stars known and below 50   → Medium
//  4. otherwise                              → Low
//
// A nil stars value never escalates on its own.
func Classify(isValid bool, similarity float64, stars *int) Level {
	switch {
	case !isValid && similarity > SimilarityThreshold:
		return High
	case !isValid:
		return Medium
	case stars != nil && *stars < MinStars:
		return Medium
	default:
		return Low
	}
}
