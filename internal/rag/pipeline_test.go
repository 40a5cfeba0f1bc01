package rag

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irdesk/ir-assist/internal/company"
	"github.com/irdesk/ir-assist/internal/config"
	"github.com/irdesk/ir-assist/pkg/search"
)

const testDirectoryYAML = `
companies:
  - id: sample
    name: サンプル株式会社
    ticker: "1234"
    routing_key: rk-sample
    aliases: [sample-co]
`

func testConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{MaxResults: 10},
		Anthropic: config.AnthropicConfig{
			Model:       "test-model",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		RAG: config.RAGConfig{
			SimilarityThreshold: 0.5,
			MaxSnippets:         5,
			MaxBlockChars:       800,
			MaxContextBlocks:    8,
			HistoryTurns:        3,
		},
	}
}

func testPipeline(t *testing.T, srch *mockSearch, gen *mockGen) *Pipeline {
	t.Helper()
	dir, err := company.Parse([]byte(testDirectoryYAML))
	require.NoError(t, err)
	return New(testConfig(), srch, gen, nil, dir)
}

func qaHit(id, question, answer string) search.Hit {
	return search.Hit{
		ID: id,
		StructuredFields: map[string]any{
			"question": question,
			"answer":   answer,
			"company":  "サンプル株式会社",
		},
	}
}

func snippetHit(id string, snippets ...string) search.Hit {
	list := make([]any, 0, len(snippets))
	for _, s := range snippets {
		list = append(list, map[string]any{"snippet": s})
	}
	return search.Hit{
		ID: id,
		DerivedFields: map[string]any{
			"title":    "決算短信",
			"link":     "https://example.com/doc.pdf",
			"snippets": list,
		},
	}
}

func TestAskInputValidation(t *testing.T) {
	p := testPipeline(t, &mockSearch{resp: &search.Response{}}, &mockGen{})

	_, err := p.Ask(context.Background(), Request{Company: "sample", Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = p.Ask(context.Background(), Request{Company: "nonexistent", Query: "配当方針は？"})
	assert.ErrorIs(t, err, ErrUnknownCompany)
}

func TestAskExactMatchShortCircuit(t *testing.T) {
	gen := &mockGen{text: "生成された回答"}
	srch := &mockSearch{resp: &search.Response{
		Hits: []search.Hit{
			qaHit("qa-1", "配当方針を教えてください", "安定配当を基本方針としております。"),
			snippetHit("pdf-1", "営業利益は前期比10.3%減少し314,807百万円となりました。"),
		},
	}}
	p := testPipeline(t, srch, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "1234", Query: "配当方針を教えてください。"})
	require.NoError(t, err)

	assert.Equal(t, "安定配当を基本方針としております。", answer.Text)
	assert.Equal(t, 1.0, answer.Confidence)
	assert.Equal(t, 2, answer.SearchResultsCount)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "qa-1", answer.Sources[0].ID)
	assert.Zero(t, gen.calls, "no generation on exact match")
}

func TestAskZeroResults(t *testing.T) {
	gen := &mockGen{text: "生成された回答"}
	p := testPipeline(t, &mockSearch{resp: &search.Response{}}, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "sample", Query: "営業利益の見通しは？"})
	require.NoError(t, err)

	assert.Equal(t, noResultsMessage, answer.Text)
	assert.Zero(t, answer.Confidence)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, answer.SearchResultsCount)
	assert.Zero(t, gen.calls)
}

func TestAskRetrievalErrorTreatedAsZeroResults(t *testing.T) {
	gen := &mockGen{text: "生成された回答"}
	srch := &mockSearch{err: eris.New("index unavailable")}
	p := testPipeline(t, srch, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "sample", Query: "営業利益の見通しは？"})
	require.NoError(t, err, "retrieval failure degrades, never errors")
	assert.Equal(t, noResultsMessage, answer.Text)
	assert.Equal(t, 1, srch.calls)
	assert.Zero(t, gen.calls)
}

func TestAskGeneratedAnswer(t *testing.T) {
	gen := &mockGen{text: "営業利益は前期比10.3%減少し、314,807百万円となりました。"}
	srch := &mockSearch{resp: &search.Response{
		Hits: []search.Hit{
			snippetHit("pdf-1", "営業利益は前期比10.3%減少し314,807百万円となりました。"),
		},
	}}
	p := testPipeline(t, srch, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "sample", Query: "営業利益の状況を教えてください"})
	require.NoError(t, err)

	assert.Equal(t, gen.text, answer.Text)
	assert.Equal(t, 1, gen.calls, "exactly one generation call")
	assert.Positive(t, answer.Confidence)
	assert.Equal(t, 1, answer.SearchResultsCount)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "pdf-1", answer.Sources[0].ID)
	assert.Equal(t, "決算短信", answer.Sources[0].Title)
}

func TestAskWeakEvidenceCapsConfidence(t *testing.T) {
	// Only boilerplate snippets: the fallback tier keeps context alive
	// but confidence stays at or below the weak-evidence ceiling.
	gen := &mockGen{text: "売上高は1,000百万円で前期比増加しました。"}
	srch := &mockSearch{resp: &search.Response{
		Hits: []search.Hit{
			snippetHit("pdf-1", "該当事項はありません。記載を省略しております。"),
		},
	}}
	p := testPipeline(t, srch, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "sample", Query: "株主優待について"})
	require.NoError(t, err)

	assert.Equal(t, gen.text, answer.Text)
	assert.LessOrEqual(t, answer.Confidence, 0.8)
	assert.Positive(t, answer.Confidence)
}

func TestAskNoUsableContext(t *testing.T) {
	gen := &mockGen{text: "生成された回答"}
	srch := &mockSearch{resp: &search.Response{
		Hits: []search.Hit{
			{ID: "pdf-1", DerivedFields: map[string]any{"link": "https://example.com/doc.pdf"}},
		},
	}}
	p := testPipeline(t, srch, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "sample", Query: "営業利益の見通しは？"})
	require.NoError(t, err)

	assert.Equal(t, noContextMessage, answer.Text)
	assert.Zero(t, answer.Confidence)
	assert.Equal(t, 1, answer.SearchResultsCount)
	assert.Zero(t, gen.calls)
}

func TestAskGenerationFailureDegrades(t *testing.T) {
	gen := &mockGen{err: eris.New("service unavailable")}
	srch := &mockSearch{resp: &search.Response{
		Hits: []search.Hit{
			// A near-miss Q&A record: retained as evidence but not a
			// direct match for the query.
			qaHit("qa-1", "株主優待制度はありますか", "株主優待制度は実施しておりません。"),
			snippetHit("pdf-1", "営業利益は前期比10.3%減少し314,807百万円となりました。"),
		},
	}}
	p := testPipeline(t, srch, gen)

	answer, err := p.Ask(context.Background(), Request{Company: "sample", Query: "今期の営業利益と売上の詳細な状況について教えてください"})
	require.NoError(t, err)

	assert.Equal(t, fallbackLeadIn+"株主優待制度は実施しておりません。", answer.Text)
	assert.Equal(t, 0.8, answer.Confidence)
	assert.Equal(t, 1, gen.calls, "no retry after failure")
}

func TestAskCompanyLookupVariants(t *testing.T) {
	for _, key := range []string{"sample", "1234", "サンプル株式会社", "sample-co", "SAMPLE"} {
		srch := &mockSearch{resp: &search.Response{}}
		p := testPipeline(t, srch, &mockGen{})
		_, err := p.Ask(context.Background(), Request{Company: key, Query: "配当は？"})
		assert.NoError(t, err, key)
	}
}
