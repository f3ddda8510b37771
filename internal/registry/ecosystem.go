package registry

import (
	"fmt"
	"strings"
)

// Ecosystem selects which public registry a package name is checked against.
type Ecosystem int

const (
	Python Ecosystem = iota + 1
	JavaScript
)

func (e Ecosystem) String() string {
	switch e {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	default:
		return fmt.Sprintf("Ecosystem(%d)", int(e))
	}
}

// Valid reports whether e is one of the supported ecosystems.
func (e Ecosystem) Valid() bool {
	return e == Python || e == JavaScript
}

// ParseEcosystem maps a language or registry tag to an Ecosystem.
// Unknown tags are an error rather than a silent default.
func ParseEcosystem(s string) (Ecosystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py", "pypi":
		return Python, nil
	case "javascript", "js", "node", "npm":
		return JavaScript, nil
	default:
		return 0, fmt.Errorf("unknown ecosystem %q; choose python|javascript", s)
	}
}

func (e Ecosystem) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid ecosystem %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Ecosystem) UnmarshalText(b []byte) error {
	parsed, err := ParseEcosystem(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
