// Package model defines the transient entities that flow through the
// question-answering pipeline. Everything here is per-request and
// function-scoped; nothing is cached or shared across invocations.
package model

// RetrievalHit is one result from the search index, kept as close to the
// wire shape as possible. StructuredFields carries the indexed record
// (Q&A rows land here), DerivedFields carries whatever the index derived
// from source documents (titles, links, snippets, extractive answers).
// Both maps have an unknown, index-dependent key set.
type RetrievalHit struct {
	ID               string
	StructuredFields map[string]any
	DerivedFields    map[string]any
	RelevanceScore   float64
}

// EvidenceKind classifies a retrieval hit after extraction.
type EvidenceKind string

const (
	// EvidenceQA marks a hit backed by a stored question/answer record.
	EvidenceQA EvidenceKind = "qa"
	// EvidencePDF marks a hit backed by text derived from a filing.
	// Hits matching neither shape are retained under this kind too, so
	// retrieval signal is never silently dropped.
	EvidencePDF EvidenceKind = "pdf"
)

// TextOrigin records which extraction tier produced a piece of text.
type TextOrigin string

const (
	OriginExtractive TextOrigin = "extractive"
	OriginSnippet    TextOrigin = "snippet"
	OriginRawField   TextOrigin = "rawField"
)

// QAEvidence is a stored question/answer pair.
type QAEvidence struct {
	Question string
	Answer   string
	Company  string
}

// TextEvidence is free text derived from a filing document.
// Content may be empty when every extraction tier came up dry; the
// context assembler still emits a placeholder block for such hits.
type TextEvidence struct {
	Content string
	Title   string
	Link    string
	Origin  TextOrigin
}

// EvidenceItem is the normalized unit of evidence derived from one hit.
// Exactly one of QA or Text is set, according to Kind.
type EvidenceItem struct {
	HitID          string
	Kind           EvidenceKind
	QA             *QAEvidence
	Text           *TextEvidence
	RelevanceScore float64
}

// ScoredFragment pairs a candidate text fragment with the signed score it
// received against a query. Negative scores are meaningful: they mark
// boilerplate the filter must suppress.
type ScoredFragment struct {
	Fragment TextEvidence
	Score    int
	Query    string
}

// ContextBlock is one tagged block of the assembled context.
type ContextBlock struct {
	Tag  string // "[Q&A 1]", "[Extracted 2]", "[PDF 3]"
	Text string
}

// AssembledContext is the ordered evidentiary context handed to the
// prompt builder. Chars counts rendered runes across all blocks.
type AssembledContext struct {
	Blocks []ContextBlock
	Chars  int
}

// Empty reports whether the context carries no blocks at all.
func (c AssembledContext) Empty() bool {
	return len(c.Blocks) == 0
}
