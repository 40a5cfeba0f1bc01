package rag

import (
	"context"

	"github.com/irdesk/ir-assist/pkg/anthropic"
	"github.com/irdesk/ir-assist/pkg/search"
)

// mockSearch returns a fixed response or error.
type mockSearch struct {
	resp  *search.Response
	err   error
	calls int
}

func (m *mockSearch) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

// mockGen returns fixed text or an error.
type mockGen struct {
	text  string
	err   error
	calls int
}

func (m *mockGen) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.text}},
	}, nil
}
