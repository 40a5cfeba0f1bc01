package rag

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/irdesk/ir-assist/internal/company"
	"github.com/irdesk/ir-assist/internal/config"
	"github.com/irdesk/ir-assist/internal/history"
	"github.com/irdesk/ir-assist/internal/model"
	"github.com/irdesk/ir-assist/pkg/anthropic"
	"github.com/irdesk/ir-assist/pkg/search"
)

// Input validation errors, rejected before any external call.
var (
	ErrEmptyQuery     = eris.New("rag: empty query")
	ErrUnknownCompany = eris.New("rag: unknown company")
)

// Canned degraded responses.
const (
	noResultsMessage = "申し訳ございません。ご質問に関連する情報が見つかりませんでした。質問の表現を変えてお試しください。"
	noContextMessage = "関連する資料は見つかりましたが、回答に利用できる内容を抽出できませんでした。"
)

// historyAppendTimeout bounds the fire-and-forget transcript writes.
const historyAppendTimeout = 5 * time.Second

// Request is one question against the pipeline.
type Request struct {
	SessionID string
	Company   string
	Query     string
	History   []model.ConversationMessage
}

// Pipeline sequences retrieval, exact-match detection, context assembly,
// prompt construction, and answer synthesis. It holds injected clients
// and no per-request state, so concurrent invocations are safe by
// construction.
type Pipeline struct {
	cfg       *config.Config
	search    search.Client
	synth     *Synthesizer
	history   history.Store // may be nil
	companies *company.Directory
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, searchClient search.Client, genClient anthropic.Client, st history.Store, dir *company.Directory) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		search:    searchClient,
		synth:     NewSynthesizer(genClient, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Anthropic.Temperature),
		history:   st,
		companies: dir,
	}
}

// Ask answers one question. Exactly one retrieval call and at most one
// generation call are made; every degraded path yields an Answer rather
// than an error. Only invalid input returns an error.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*model.Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	comp := p.companies.Lookup(req.Company)
	if comp == nil {
		return nil, ErrUnknownCompany
	}

	log := zap.L().With(
		zap.String("company", comp.ID),
		zap.String("session", req.SessionID),
	)
	log.Info("pipeline: query received", zap.Int("query_len", len([]rune(query))))

	// SEARCH. Retrieval failure is not an error: it degrades to the
	// zero-result response. The client enforces its own timeout ceiling.
	resp, err := p.search.Search(ctx, search.Request{
		Query:      query,
		MaxResults: p.cfg.Search.MaxResults,
		RoutingKey: comp.RoutingKey,
	})
	if err != nil {
		log.Warn("pipeline: retrieval unavailable, treating as zero results", zap.Error(err))
		resp = &search.Response{}
	}
	if len(resp.Hits) == 0 {
		log.Info("pipeline: no retrieval results")
		return p.finish(req, query, &model.Answer{
			Text:       noResultsMessage,
			Sources:    []model.DocumentReference{},
			Confidence: 0,
		})
	}

	items := p.extractAll(resp.Hits, query)

	// EXACT_MATCH short-circuit: a stored answer judged equivalent to
	// the query is authoritative and cheaper than paraphrase.
	if m := DetectDirectHit(query, items, p.cfg.RAG.SimilarityThreshold); m != nil {
		log.Info("pipeline: direct Q&A match",
			zap.Float64("similarity", m.Similarity),
			zap.Bool("exact", m.Exact),
		)
		return p.finish(req, query, &model.Answer{
			Text:               m.Item.QA.Answer,
			Sources:            []model.DocumentReference{referenceFor(m.Item)},
			Confidence:         m.Confidence(),
			SearchResultsCount: len(resp.Hits),
		})
	}

	// CONTEXT_BUILD.
	assembled := AssembleContext(items, AssembleConfig{
		MaxBlockChars: p.cfg.RAG.MaxBlockChars,
		MaxBlocks:     p.cfg.RAG.MaxContextBlocks,
	})
	if assembled.Empty() || !HasUsableContent(assembled) {
		log.Info("pipeline: no usable context", zap.Int("hits", len(resp.Hits)))
		return p.finish(req, query, &model.Answer{
			Text:               noContextMessage,
			Sources:            referencesFor(items),
			Confidence:         0,
			SearchResultsCount: len(resp.Hits),
		})
	}

	// GENERATE → RESPOND. Generation failure is absorbed by the
	// synthesizer's fallback tiers, never retried.
	stats := collectStats(query, items)
	prompt := BuildPrompt(RenderContext(assembled), req.History, query, p.cfg.RAG.HistoryTurns)
	result := p.synth.Synthesize(ctx, prompt, items, stats)

	log.Info("pipeline: answer synthesized",
		zap.Float64("confidence", result.Confidence),
		zap.Bool("degraded", result.Degraded),
		zap.Int("context_chars", assembled.Chars),
	)

	answer := &model.Answer{
		Text:               result.Text,
		Confidence:         result.Confidence,
		SearchResultsCount: len(resp.Hits),
		Sources:            []model.DocumentReference{},
	}
	if result.Confidence > 0 {
		answer.Sources = referencesFor(items)
	}
	return p.finish(req, query, answer)
}

// extractAll normalizes retrieval hits into evidence, preserving order.
func (p *Pipeline) extractAll(hits []search.Hit, query string) []model.EvidenceItem {
	items := make([]model.EvidenceItem, 0, len(hits))
	for _, h := range hits {
		ev := ExtractEvidence(model.RetrievalHit{
			ID:               h.ID,
			StructuredFields: h.StructuredFields,
			DerivedFields:    h.DerivedFields,
			RelevanceScore:   h.RelevanceScore,
		}, query, p.cfg.RAG.MaxSnippets)
		if ev != nil {
			items = append(items, *ev)
		}
	}
	return items
}

// collectStats summarizes evidence quality for the confidence heuristic.
func collectStats(query string, items []model.EvidenceItem) EvidenceStats {
	var stats EvidenceStats
	for _, item := range items {
		switch {
		case item.Kind == model.EvidenceQA && item.QA != nil:
			stats.QACount++
		case item.Text != nil && item.Text.Content != "":
			if ScoreFragment(query, item.Text.Content) > 0 {
				stats.PositiveFragments++
			}
			if HasNumericFinancialData(item.Text.Content) {
				stats.NumericEvidence = true
			}
		}
	}
	stats.WeakFallback = stats.QACount == 0 && stats.PositiveFragments == 0 && !stats.NumericEvidence
	return stats
}

// finish appends the exchange to the transcript store fire-and-forget
// and returns the answer unchanged. Store failures never surface.
func (p *Pipeline) finish(req Request, query string, answer *model.Answer) (*model.Answer, error) {
	if p.history != nil && req.SessionID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), historyAppendTimeout)
			defer cancel()

			if err := p.history.AppendMessage(ctx, history.Message{
				SessionID: req.SessionID,
				Role:      model.RoleUser,
				Content:   query,
			}); err != nil {
				zap.L().Warn("pipeline: append user message failed", zap.Error(err))
			}
			if err := p.history.AppendMessage(ctx, history.Message{
				SessionID:  req.SessionID,
				Role:       model.RoleAssistant,
				Content:    answer.Text,
				Confidence: answer.Confidence,
				Sources:    answer.Sources,
			}); err != nil {
				zap.L().Warn("pipeline: append assistant message failed", zap.Error(err))
			}
		}()
	}
	return answer, nil
}

// referenceFor builds the source reference for one evidence item.
func referenceFor(item model.EvidenceItem) model.DocumentReference {
	ref := model.DocumentReference{
		ID:             item.HitID,
		RelevanceScore: item.RelevanceScore,
	}
	switch {
	case item.Kind == model.EvidenceQA && item.QA != nil:
		ref.Title = item.QA.Question
		ref.Source = "qa"
	case item.Text != nil:
		ref.Title = item.Text.Title
		ref.Source = item.Text.Link
		if ref.Source == "" {
			ref.Source = "pdf"
		}
	}
	return ref
}

func referencesFor(items []model.EvidenceItem) []model.DocumentReference {
	refs := make([]model.DocumentReference, 0, len(items))
	for _, item := range items {
		refs = append(refs, referenceFor(item))
	}
	return refs
}
