package imports

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// The grammar recovers from inputs the Python 3 compiler rejects without
// producing ERROR nodes: Python 2 statements and literals, and bad
// indentation. checkNode finds those.

var clauses = map[string]bool{
	"elif_clause":         true,
	"else_clause":         true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
}

func checkNode(n *sitter.Node, source []byte) *ParseError {
	switch n.Type() {
	case "module":
		for _, s := range statements(n) {
			if beginsLine(s, source) && s.StartPoint().Column != 0 {
				return errorAt(s, "unexpected indent")
			}
		}
	case "block":
		if pe := checkBlock(n, source); pe != nil {
			return pe
		}
	case "print_statement":
		if arg := n.NamedChild(0); arg == nil || (arg.Type() != "parenthesized_expression" && arg.Type() != "chevron") {
			return errorAt(n, "Missing parentheses in call to 'print'")
		}
	case "exec_statement":
		return errorAt(n, "Missing parentheses in call to 'exec'")
	case "string":
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c.Type() == "string_start" && strings.Contains(c.Content(source), "`") {
				return errorAt(n, "invalid syntax")
			}
		}
	case "integer":
		if msg := checkInteger(n.Content(source)); msg != "" {
			return errorAt(n, msg)
		}
	case "comparison_operator":
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); !c.IsNamed() && c.Type() == "<>" {
				return errorAt(c, "invalid syntax")
			}
		}
	case "for_in_clause":
		// An unparenthesized tuple after "in" is only legal in a for statement.
		seenIn := false
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			switch {
			case c.IsNamed():
			case c.Type() == "in":
				seenIn = true
			case seenIn && c.Type() == ",":
				return errorAt(c, "invalid syntax")
			}
		}
	}

	col := n.StartPoint().Column
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if clauses[c.Type()] && beginsLine(c, source) && c.StartPoint().Column != col {
			return errorAt(c, "unindent does not match any outer indentation level")
		}
		if pe := checkNode(c, source); pe != nil {
			return pe
		}
	}
	return nil
}

// checkBlock requires at least one statement, and that every statement
// starting a line sits at one column, deeper than the owning statement.
func checkBlock(b *sitter.Node, source []byte) *ParseError {
	owner := b.Parent()
	stmts := statements(b)
	if len(stmts) == 0 {
		if owner != nil {
			return errorAt(owner, "expected an indented block")
		}
		return errorAt(b, "expected an indented block")
	}

	indent := -1
	for _, s := range stmts {
		if !beginsLine(s, source) {
			continue
		}
		col := int(s.StartPoint().Column)
		switch {
		case owner != nil && col <= int(owner.StartPoint().Column):
			return errorAt(s, "expected an indented block")
		case indent < 0:
			indent = col
		case col > indent:
			return errorAt(s, "unexpected indent")
		case col < indent:
			return errorAt(s, "unindent does not match any outer indentation level")
		}
	}
	return nil
}

// checkInteger rejects Python 2 integer forms: 0777 and 10L.
func checkInteger(lit string) string {
	s := strings.ToLower(lit)
	switch {
	case strings.HasSuffix(s, "l"):
		return "invalid decimal literal"
	case strings.HasSuffix(s, "j"),
		strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0o"), strings.HasPrefix(s, "0b"):
		return ""
	case len(s) > 1 && s[0] == '0' && strings.Trim(s, "0_") != "":
		return "leading zeros in decimal integer literals are not permitted; use an 0o prefix for octal integers"
	}
	return ""
}

// statements returns the named children of n that are not comments or
// line continuations.
func statements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch c := n.NamedChild(i); c.Type() {
		case "comment", "line_continuation":
		default:
			out = append(out, c)
		}
	}
	return out
}

// beginsLine reports whether only blanks precede n on its line.
func beginsLine(n *sitter.Node, source []byte) bool {
	for i := int(n.StartByte()) - 1; i >= 0; i-- {
		switch source[i] {
		case '\n':
			return true
		case ' ', '\t', '\f':
		default:
			return false
		}
	}
	return true
}

func errorAt(n *sitter.Node, msg string) *ParseError {
	p := n.StartPoint()
	line, col := int(p.Row)+1, int(p.Column)+1
	return &ParseError{
		Line:   line,
		Column: col,
		Detail: fmt.Sprintf("%s (line %d, column %d)", msg, line, col),
	}
}
