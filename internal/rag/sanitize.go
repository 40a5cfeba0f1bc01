// Package rag implements the context-assembly and answer-synthesis
// pipeline: evidence extraction from raw retrieval hits, snippet scoring
// and filtering, exact-match detection against stored Q&A records,
// context assembly, prompt construction, and answer synthesis with
// graceful fallback tiers.
package rag

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// minUsableRunes is the minimum sanitized length for a piece of text to
// count as evidence. Anything shorter is treated as absent.
const minUsableRunes = 11

var (
	htmlTagRe = regexp.MustCompile(`<[^>]*>`)
	// Collapses ASCII whitespace and ideographic space alike.
	whitespaceRe = regexp.MustCompile("[\\s　]+")
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// Sanitize strips HTML tags, decodes the common entities, collapses
// whitespace runs, and trims. Index snippets arrive with highlight
// markup and entity-encoded spacing; everything downstream assumes
// plain text.
func Sanitize(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Usable reports whether sanitized text is long enough to be evidence.
func Usable(s string) bool {
	return len([]rune(s)) >= minUsableRunes
}

// foldWidth maps full-width digits and latin to their half-width forms so
// numeric patterns match filings regardless of the source encoding.
func foldWidth(s string) string {
	return width.Fold.String(s)
}
