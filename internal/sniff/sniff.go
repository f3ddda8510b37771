// Package sniff classifies a text snippet as Python, JavaScript or unknown
// using cheap keyword heuristics. The keyword tables are loaded from the
// embedded languages/*.yaml files.
package sniff

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/1homsi/importrisk/languages"
	"gopkg.in/yaml.v3"
)

// Language is the sniffer's verdict for a snippet.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	Unknown    Language = "unknown"
)

// KeywordSet holds the resolved tokens for one language.
type KeywordSet struct {
	Language Language
	Priority int
	Keywords []string
}

// rawKeywordSet mirrors the YAML structure.
type rawKeywordSet struct {
	Name     string   `yaml:"name"`
	Priority int      `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
}

// LoadKeywordSets reads every *.yaml file in fsys and returns the sets sorted
// by priority. Empty names, empty keyword lists and duplicate priorities are
// rejected so that evaluation order is never ambiguous.
func LoadKeywordSets(fsys fs.FS) ([]KeywordSet, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list keyword files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no keyword files found")
	}

	sets := make([]KeywordSet, 0, len(files))
	priorities := make(map[int]string, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var raw rawKeywordSet
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if raw.Name == "" {
			return nil, fmt.Errorf("%s: missing name", name)
		}
		if len(raw.Keywords) == 0 {
			return nil, fmt.Errorf("%s: no keywords for %q", name, raw.Name)
		}
		if other, dup := priorities[raw.Priority]; dup {
			return nil, fmt.Errorf("%s: priority %d already used by %s", name, raw.Priority, other)
		}
		priorities[raw.Priority] = path.Base(name)

		ks := KeywordSet{
			Language: Language(strings.ToLower(raw.Name)),
			Priority: raw.Priority,
			Keywords: make([]string, 0, len(raw.Keywords)),
		}
		for _, k := range raw.Keywords {
			if k == "" {
				return nil, fmt.Errorf("%s: empty keyword for %q", name, raw.Name)
			}
			ks.Keywords = append(ks.Keywords, strings.ToLower(k))
		}
		sets = append(sets, ks)
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].Priority < sets[j].Priority })
	return sets, nil
}

// MustLoadKeywordSets is like LoadKeywordSets but panics on error.
// Safe at package-init time since the YAML is embedded at compile time.
func MustLoadKeywordSets(fsys fs.FS) []KeywordSet {
	sets, err := LoadKeywordSets(fsys)
	if err != nil {
		panic(fmt.Sprintf("importrisk: %v", err))
	}
	return sets
}

// Sniffer evaluates keyword sets in priority order.
type Sniffer struct {
	sets []KeywordSet
}

// New returns a Sniffer over the given sets, which must already be sorted.
func New(sets []KeywordSet) *Sniffer {
	return &Sniffer{sets: sets}
}

var defaultSniffer = New(MustLoadKeywordSets(languages.FS))

// Detect returns the first language whose keywords occur in the lower-cased
// text, or Unknown.
func (s *Sniffer) Detect(text string) Language {
	lower := strings.ToLower(text)
	for _, set := range s.sets {
		for _, k := range set.Keywords {
			if strings.Contains(lower, k) {
				return set.Language
			}
		}
	}
	return Unknown
}

// Detect classifies text with the embedded keyword tables.
func Detect(text string) Language {
	return defaultSniffer.Detect(text)
}
