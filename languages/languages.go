// Package languages embeds the keyword tables used by the language sniffer.
// Each YAML file names a language, its evaluation priority (lower runs
// first), and the lower-case tokens whose presence indicates it. Adding a
// language is a matter of dropping in a new *.yaml file.
package languages

import "embed"

// FS is an embed.FS containing every *.yaml file in this directory.
//
//go:embed *.yaml
var FS embed.FS
