package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/irdesk/ir-assist/internal/company"
	"github.com/irdesk/ir-assist/internal/history"
	"github.com/irdesk/ir-assist/internal/model"
	"github.com/irdesk/ir-assist/internal/rag"
	anthropicpkg "github.com/irdesk/ir-assist/pkg/anthropic"
	"github.com/irdesk/ir-assist/pkg/search"
)

// askEnv holds the initialized store, company directory, and pipeline
// shared by the ask/serve/companies commands.
type askEnv struct {
	Store     history.Store
	Pipeline  *rag.Pipeline
	Companies *company.Directory
}

// Close releases resources held by the environment.
func (e *askEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured history backend and runs migrations.
func initStore(ctx context.Context) (history.Store, error) {
	var (
		st  history.Store
		err error
	)
	switch cfg.History.Driver {
	case "postgres":
		st, err = history.NewPostgres(ctx, cfg.History.DatabaseURL)
	case "sqlite", "":
		st, err = history.NewSQLite(cfg.History.SQLitePath)
	default:
		return nil, eris.Errorf("unknown history driver %q", cfg.History.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate history store")
	}
	return st, nil
}

// initEnv sets up the store, API clients, company directory, and the
// pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*askEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := company.Load(cfg.Companies.Path)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load company directory")
	}
	zap.L().Info("company directory loaded", zap.Int("companies", len(dir.All())))

	searchOpts := []search.Option{
		search.WithTimeout(time.Duration(cfg.Search.TimeoutSecs) * time.Second),
		search.WithRateLimit(cfg.Search.RateLimit),
	}
	if cfg.Search.BaseURL != "" {
		searchOpts = append(searchOpts, search.WithBaseURL(cfg.Search.BaseURL))
	}
	searchClient := search.NewClient(cfg.Search.Key, searchOpts...)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	p := rag.New(cfg, searchClient, anthropicClient, st, dir)

	return &askEnv{
		Store:     st,
		Pipeline:  p,
		Companies: dir,
	}, nil
}

// sessionHistory loads recent turns of a session as conversation context.
// A missing or failing store yields an empty history, never an error.
func sessionHistory(ctx context.Context, st history.Store, sessionID string, turns int) []model.ConversationMessage {
	if st == nil || sessionID == "" {
		return nil
	}
	msgs, err := st.RecentMessages(ctx, sessionID, turns*2)
	if err != nil {
		zap.L().Warn("load session history failed", zap.Error(err))
		return nil
	}
	conv := make([]model.ConversationMessage, 0, len(msgs))
	for _, m := range msgs {
		conv = append(conv, model.ConversationMessage{Role: m.Role, Content: m.Content})
	}
	return conv
}
