// Package retrieval provides local document and record search over the
// sourcepilot store. Documents are chunked and ranked by weighted keyword
// overlap with the query; supplier records are summarized into record sets.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/store"
	"sourcepilot/internal/types"
)

const (
	defaultTopK  = 5
	maxChunkSize = 400
	cacheTTL     = 5 * time.Minute
	cacheSize    = 500
)

// Local implements types.Retriever over the SQLite store. Empty results are
// normal operation, never an error.
type Local struct {
	store     *store.Store
	cache     *resultCache
	maxChunks int
}

// Options tune the retriever. Zero values fall back to defaults.
type Options struct {
	// MaxChunks caps results when the query does not set TopK.
	MaxChunks int

	// CacheTTL controls how long ranked results stay cached.
	CacheTTL time.Duration
}

// NewLocal creates a retriever backed by the given store with default
// options.
func NewLocal(s *store.Store) *Local {
	return NewLocalWithOptions(s, Options{})
}

// NewLocalWithOptions creates a retriever with explicit tuning.
func NewLocalWithOptions(s *store.Store, opts Options) *Local {
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = defaultTopK
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cacheTTL
	}
	return &Local{
		store:     s,
		cache:     newResultCache(cacheSize, opts.CacheTTL),
		maxChunks: opts.MaxChunks,
	}
}

// =============================================================================
// DOCUMENT SEARCH
// =============================================================================

// RetrieveDocuments ranks document chunks against the query and returns the
// top matches within the query's scope.
func (l *Local) RetrieveDocuments(ctx context.Context, q types.RetrievalQuery) (*types.RetrievalResult, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "retrieve_documents")
	defer timer.Stop()

	key := cacheKey(q)
	if cached, ok := l.cache.get(key); ok {
		return cached, nil
	}

	docs, err := l.store.Documents(ctx, q.CaseID, q.SupplierID, q.CategoryID, q.DocumentTypes)
	if err != nil {
		return nil, fmt.Errorf("retrieval: documents: %w", err)
	}

	terms := extractTerms(q.Query)
	logging.Retrieval("query %q: %d terms over %d documents", q.Query, len(terms.order), len(docs))

	var scored []scoredChunk
	for _, d := range docs {
		for _, chunk := range chunkContent(d.Content) {
			score := scoreChunk(chunk, terms)
			if score <= 0 {
				continue
			}
			scored = append(scored, scoredChunk{
				score: score,
				chunk: types.RetrievedChunk{
					Content: chunk,
					Metadata: types.ChunkMetadata{
						DocumentID:   d.DocumentID,
						Filename:     d.Filename,
						DocumentType: d.DocumentType,
					},
				},
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	topK := q.TopK
	if topK <= 0 {
		topK = l.maxChunks
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}

	result := &types.RetrievalResult{Chunks: make([]types.RetrievedChunk, 0, len(scored))}
	for _, sc := range scored {
		result.Chunks = append(result.Chunks, sc.chunk)
	}
	l.cache.set(key, result)

	logging.Retrieval("query %q: returning %d chunks", q.Query, len(result.Chunks))
	return result, nil
}

type scoredChunk struct {
	score float64
	chunk types.RetrievedChunk
}

// queryTerms holds the tokenized query with per-term weights.
type queryTerms struct {
	order   []string
	weights map[string]float64
}

// extractTerms tokenizes the query, drops stopwords, and weights longer
// terms higher since they carry more signal in short procurement queries.
func extractTerms(query string) queryTerms {
	terms := queryTerms{weights: make(map[string]float64)}
	for _, raw := range strings.Fields(strings.ToLower(query)) {
		tok := strings.Trim(raw, ".,;:!?\"'()[]")
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		if _, seen := terms.weights[tok]; seen {
			continue
		}
		weight := 0.6
		if len(tok) >= 6 {
			weight = 1.0
		}
		terms.order = append(terms.order, tok)
		terms.weights[tok] = weight
	}
	return terms
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "are": true, "was": true, "what": true,
	"where": true, "when": true, "how": true, "can": true, "our": true,
	"has": true, "have": true, "about": true, "into": true, "all": true,
	"any": true, "its": true, "their": true, "will": true, "should": true,
	"would": true, "please": true, "show": true, "get": true, "tell": true,
}

// scoreChunk sums the weight of each distinct query term found in the chunk,
// with a boost when multiple distinct terms co-occur.
func scoreChunk(chunk string, terms queryTerms) float64 {
	lower := strings.ToLower(chunk)
	var score float64
	matched := 0
	for _, term := range terms.order {
		if strings.Contains(lower, term) {
			score += terms.weights[term]
			matched++
		}
	}
	if matched > 1 {
		score *= 1.0 + float64(matched-1)*0.2
	}
	return score
}

// chunkContent splits document text into sentence-aligned chunks no longer
// than maxChunkSize.
func chunkContent(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= maxChunkSize {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(content) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxChunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '.' && (i+1 == len(text) || text[i+1] == ' ') {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func cacheKey(q types.RetrievalQuery) string {
	return strings.Join([]string{
		q.Query, q.CaseID, q.SupplierID, q.CategoryID, string(q.Stage),
		strings.Join(q.DocumentTypes, ","), fmt.Sprint(q.TopK),
	}, "|")
}

// =============================================================================
// SUPPLIER RECORDS
// =============================================================================

// SupplierPerformance returns performance observations with a one-line
// summary of the latest availability reading.
func (l *Local) SupplierPerformance(ctx context.Context, supplierID, categoryID string) (*types.RecordSet, error) {
	rows, err := l.store.PerformanceRecords(ctx, supplierID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: performance for %s: %w", supplierID, err)
	}

	rs := &types.RecordSet{Records: make([]map[string]any, 0, len(rows))}
	for _, r := range rows {
		rs.Records = append(rs.Records, map[string]any{
			"supplier_id": r.SupplierID,
			"category_id": r.CategoryID,
			"metric":      r.Metric,
			"value":       r.Value,
			"period":      r.Period,
			"trend":       r.Trend,
		})
	}
	if len(rows) == 0 {
		rs.Summary = fmt.Sprintf("No performance records for supplier %s", supplierID)
		return rs, nil
	}

	declining := 0
	for _, r := range rows {
		if r.Trend == "declining" {
			declining++
		}
	}
	rs.Summary = fmt.Sprintf("%d performance metrics for supplier %s (%d declining)",
		len(rows), supplierID, declining)
	return rs, nil
}

// SupplierSpend returns spend observations with a summary totaling the
// amounts across periods.
func (l *Local) SupplierSpend(ctx context.Context, supplierID, categoryID string) (*types.RecordSet, error) {
	rows, err := l.store.SpendRecords(ctx, supplierID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: spend for %s: %w", supplierID, err)
	}

	rs := &types.RecordSet{Records: make([]map[string]any, 0, len(rows))}
	var total float64
	currency := "USD"
	for _, r := range rows {
		total += r.Amount
		currency = r.Currency
		rs.Records = append(rs.Records, map[string]any{
			"supplier_id": r.SupplierID,
			"category_id": r.CategoryID,
			"period":      r.Period,
			"amount":      r.Amount,
			"currency":    r.Currency,
		})
	}
	if len(rows) == 0 {
		rs.Summary = fmt.Sprintf("No spend records for supplier %s", supplierID)
		return rs, nil
	}
	rs.Summary = fmt.Sprintf("Total spend %.0f %s across %d periods for supplier %s",
		total, currency, len(rows), supplierID)
	return rs, nil
}

// SLAEvents returns service-level incidents, optionally filtered by
// severity, with an incident-count summary.
func (l *Local) SLAEvents(ctx context.Context, supplierID, severity string) (*types.RecordSet, error) {
	rows, err := l.store.SLAEventRecords(ctx, supplierID, severity)
	if err != nil {
		return nil, fmt.Errorf("retrieval: SLA events for %s: %w", supplierID, err)
	}

	rs := &types.RecordSet{Records: make([]map[string]any, 0, len(rows))}
	high := 0
	for _, e := range rows {
		if e.Severity == "high" || e.Severity == "critical" {
			high++
		}
		rs.Records = append(rs.Records, map[string]any{
			"supplier_id": e.SupplierID,
			"severity":    e.Severity,
			"event_type":  e.EventType,
			"description": e.Description,
			"occurred_at": e.OccurredAt,
		})
	}
	if len(rows) == 0 {
		rs.Summary = fmt.Sprintf("No SLA events for supplier %s", supplierID)
		return rs, nil
	}
	rs.Summary = fmt.Sprintf("%d SLA events for supplier %s (%d high severity)",
		len(rows), supplierID, high)
	return rs, nil
}

// =============================================================================
// CACHE
// =============================================================================

type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	result    *types.RetrievalResult
	timestamp time.Time
}

func newResultCache(maxSize int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *resultCache) get(key string) (*types.RetrievalResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.timestamp) > c.ttl {
		return nil, false
	}
	return e.result, true
}

func (c *resultCache) set(key string, result *types.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		// Evict the oldest entry.
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.timestamp.Before(oldest) {
				oldestKey = k
				oldest = e.timestamp
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = &cacheEntry{result: result, timestamp: time.Now()}
}
