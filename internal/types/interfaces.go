package types

import (
	"context"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================
// The governance core issues calls against these; the implementations live
// outside the core (internal/retrieval, internal/llm, internal/store provide
// local ones, and tests provide fakes).

// ChunkMetadata identifies where a retrieved chunk came from.
type ChunkMetadata struct {
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename"`
	DocumentType string `json:"document_type"`
}

// RetrievedChunk is one ranked piece of document content.
type RetrievedChunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// RetrievalResult is the document-search response shape.
type RetrievalResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
}

// RetrievalQuery scopes a document search.
type RetrievalQuery struct {
	Query         string
	CaseID        string
	SupplierID    string
	CategoryID    string
	Stage         Stage
	DocumentTypes []string
	TopK          int
}

// RecordSet is the structured-records response shape shared by the supplier
// performance, spend, and SLA lookups.
type RecordSet struct {
	Summary string           `json:"summary"`
	Records []map[string]any `json:"records"`
}

// Retriever is the black-box document/records search collaborator. Empty
// results are normal operation, never an error.
type Retriever interface {
	RetrieveDocuments(ctx context.Context, q RetrievalQuery) (*RetrievalResult, error)
	SupplierPerformance(ctx context.Context, supplierID, categoryID string) (*RecordSet, error)
	SupplierSpend(ctx context.Context, supplierID, categoryID string) (*RecordSet, error)
	SLAEvents(ctx context.Context, supplierID, severity string) (*RecordSet, error)
}

// Usage captures token counts from one LLM call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// LLMClient is the narration collaborator. Implementations must report token
// usage even on degraded responses.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, Usage, error)
}

// CaseFilter narrows a case listing.
type CaseFilter struct {
	Status     CaseStatus
	Stage      Stage
	CategoryID string
	Limit      int
}

// CaseStore is the persistence collaborator. LoadCase returns (nil, nil) when
// the case does not exist; a save failure is the one fatal condition in the
// core and must propagate.
type CaseStore interface {
	LoadCase(ctx context.Context, caseID string) (*CaseState, error)
	SaveCase(ctx context.Context, state *CaseState) error
	ListCases(ctx context.Context, filter CaseFilter) ([]*CaseState, error)
	SaveArtifactPack(ctx context.Context, caseID string, pack *ArtifactPack) error
}
