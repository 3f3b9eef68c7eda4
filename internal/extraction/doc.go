// Package extraction recovers procedure structure from the raw text of a
// manual page or section using rule tables of regular expressions.
//
// The package detects:
//   - Step numbers ("手順3", "step 3", "3.", "3)", "【3】")
//   - Warnings in three severity tiers (critical, warning, caution)
//   - Figure and table references ("図2", "Fig. 2", "表1", "image 4")
//   - Checklist items ("確認: ...", "check: ...", "☐ ...", "□ ...", "✓ ...")
//
// # Architecture
//
// Every extractor is a list of (regex, tag) rules interpreted by a single
// scan routine. The vocabulary lives in Rules, which can be loaded from
// TOML so new locales can be added without code changes:
//
//	rules, err := extraction.LoadRules("rules.toml")
//	ex, err := extraction.NewExtractor(extraction.Config{Rules: rules})
//	result := ex.Extract(pageText)
//
// Extract never fails. Text with no recognizable cues yields a Result
// whose collections are all empty.
//
// # Context Snippets
//
// Warnings and figure references carry a snippet of SnippetRadius runes
// on either side of the match, clipped at the edges of the unit text.
package extraction
