package agent

import (
	"context"
	"errors"

	"sourcepilot/internal/types"
)

// stubRetriever serves canned documents and records.
type stubRetriever struct {
	chunks      []types.RetrievedChunk
	performance map[string][]map[string]any
	spend       []map[string]any
	slaEvents   map[string][]map[string]any
	failAll     bool
}

func (r *stubRetriever) RetrieveDocuments(ctx context.Context, q types.RetrievalQuery) (*types.RetrievalResult, error) {
	if r.failAll {
		return nil, errors.New("retriever unavailable")
	}
	return &types.RetrievalResult{Chunks: r.chunks}, nil
}

func (r *stubRetriever) SupplierPerformance(ctx context.Context, supplierID, categoryID string) (*types.RecordSet, error) {
	if r.failAll {
		return nil, errors.New("retriever unavailable")
	}
	if supplierID == "" {
		var all []map[string]any
		for _, records := range r.performance {
			all = append(all, records...)
		}
		return &types.RecordSet{Records: all}, nil
	}
	return &types.RecordSet{Records: r.performance[supplierID]}, nil
}

func (r *stubRetriever) SupplierSpend(ctx context.Context, supplierID, categoryID string) (*types.RecordSet, error) {
	if r.failAll {
		return nil, errors.New("retriever unavailable")
	}
	return &types.RecordSet{Records: r.spend}, nil
}

func (r *stubRetriever) SLAEvents(ctx context.Context, supplierID, severity string) (*types.RecordSet, error) {
	if r.failAll {
		return nil, errors.New("retriever unavailable")
	}
	return &types.RecordSet{Records: r.slaEvents[supplierID]}, nil
}

// stubLLM returns a fixed narration with fixed token usage.
type stubLLM struct {
	response string
	tokens   int
	calls    int
}

func (l *stubLLM) Complete(ctx context.Context, prompt string) (string, types.Usage, error) {
	l.calls++
	return l.response, types.Usage{
		InputTokens:  l.tokens / 2,
		OutputTokens: l.tokens - l.tokens/2,
	}, nil
}
