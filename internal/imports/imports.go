// Package imports extracts the top-level package names referenced by the
// import statements of a Python source snippet.
package imports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/1homsi/importrisk/internal/registry"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseError reports source text that is not valid Python.
type ParseError struct {
	Line   int // 1-based
	Column int // 1-based
	Detail string
}

func (e *ParseError) Error() string { return e.Detail }

// PackageReference is an extracted name paired with the ecosystem it will
// be verified against.
type PackageReference struct {
	Name      string
	Ecosystem registry.Ecosystem
}

// Extract parses source and returns the sorted, de-duplicated top-level
// names of every imported module:
//   - import a.b.c        → a
//   - import a.b as c     → a
//   - from a.b import c   → a
//   - from .a import b    → a
//   - from . import b     → nothing
//
// Imports inside functions, classes and conditional blocks are included.
// Syntactically invalid source yields a *ParseError and no names.
func Extract(ctx context.Context, source []byte) ([]string, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse python source: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root)
	}
	if pe := checkNode(root, source); pe != nil {
		return nil, pe
	}

	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" {
			seen[name] = true
		}
	}

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					add(topLevel(child, source))
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						add(topLevel(name, source))
					}
				}
			}
		case "import_from_statement":
			mod := n.ChildByFieldName("module_name")
			if mod == nil {
				return
			}
			switch mod.Type() {
			case "dotted_name":
				add(topLevel(mod, source))
			case "relative_import":
				for i := 0; i < int(mod.NamedChildCount()); i++ {
					if child := mod.NamedChild(i); child.Type() == "dotted_name" {
						add(topLevel(child, source))
					}
				}
			}
		case "future_import_statement":
			add("__future__")
		}
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ExtractReferences is Extract with every name tagged with eco.
func ExtractReferences(ctx context.Context, source []byte, eco registry.Ecosystem) ([]PackageReference, error) {
	names, err := Extract(ctx, source)
	if err != nil {
		return nil, err
	}
	refs := make([]PackageReference, len(names))
	for i, name := range names {
		refs[i] = PackageReference{Name: name, Ecosystem: eco}
	}
	return refs, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

// topLevel returns the first identifier of a dotted_name node.
func topLevel(n *sitter.Node, source []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "identifier" {
			return child.Content(source)
		}
	}
	first, _, _ := strings.Cut(n.Content(source), ".")
	return strings.TrimSpace(first)
}

func syntaxError(root *sitter.Node) *ParseError {
	bad := firstErrorNode(root)
	if bad == nil {
		return &ParseError{Detail: "invalid syntax"}
	}
	p := bad.StartPoint()
	line, col := int(p.Row)+1, int(p.Column)+1
	if bad.IsMissing() {
		return &ParseError{
			Line:   line,
			Column: col,
			Detail: fmt.Sprintf("expected %q (line %d, column %d)", bad.Type(), line, col),
		}
	}
	return &ParseError{
		Line:   line,
		Column: col,
		Detail: fmt.Sprintf("invalid syntax (line %d, column %d)", line, col),
	}
}

// firstErrorNode returns the earliest ERROR or MISSING node in document order.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstErrorNode(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}
