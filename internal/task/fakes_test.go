package task

import (
	"context"
	"errors"

	"sourcepilot/internal/types"
)

// fakeRetriever serves canned records and chunks keyed by supplier.
type fakeRetriever struct {
	chunks      []types.RetrievedChunk
	performance map[string][]map[string]any
	spend       []map[string]any
	slaEvents   map[string][]map[string]any
	failAll     bool
}

func (f *fakeRetriever) RetrieveDocuments(ctx context.Context, q types.RetrievalQuery) (*types.RetrievalResult, error) {
	if f.failAll {
		return nil, errors.New("retriever down")
	}
	return &types.RetrievalResult{Chunks: f.chunks}, nil
}

func (f *fakeRetriever) SupplierPerformance(ctx context.Context, supplierID, categoryID string) (*types.RecordSet, error) {
	if f.failAll {
		return nil, errors.New("retriever down")
	}
	if supplierID == "" {
		var all []map[string]any
		for _, records := range f.performance {
			all = append(all, records...)
		}
		return &types.RecordSet{Records: all}, nil
	}
	return &types.RecordSet{Records: f.performance[supplierID]}, nil
}

func (f *fakeRetriever) SupplierSpend(ctx context.Context, supplierID, categoryID string) (*types.RecordSet, error) {
	if f.failAll {
		return nil, errors.New("retriever down")
	}
	return &types.RecordSet{Records: f.spend}, nil
}

func (f *fakeRetriever) SLAEvents(ctx context.Context, supplierID, severity string) (*types.RecordSet, error) {
	if f.failAll {
		return nil, errors.New("retriever down")
	}
	return &types.RecordSet{Records: f.slaEvents[supplierID]}, nil
}

// fakeLLM returns a fixed response with a fixed token count.
type fakeLLM struct {
	response string
	tokens   int
	err      error
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, types.Usage, error) {
	f.calls++
	usage := types.Usage{InputTokens: f.tokens / 2, OutputTokens: f.tokens - f.tokens/2}
	if f.err != nil {
		return "", usage, f.err
	}
	return f.response, usage, nil
}
