// Package registry maps invoice content hashes to issued IRNs and detects
// exact and near-duplicate submissions.
package registry

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"signet/internal/domain"
	"signet/internal/irn"
	"signet/internal/port"
)

// DefaultCapacity bounds the in-memory index. Exceeding it evicts the
// oldest tenth of the records; callers needing permanent dedup must attach
// a DuplicateStore.
const DefaultCapacity = 100_000

// DefaultSimilarityThreshold is the minimum weighted score reported by
// FindSimilar when the caller passes zero.
const DefaultSimilarityThreshold = 0.8

// Similarity weights across the summary fields.
const (
	weightCustomerName = 0.30
	weightAmount       = 0.25
	weightReference    = 0.20
	weightCurrency     = 0.10
	weightLineCount    = 0.10
	weightDate         = 0.05
)

var (
	customerNameKeys = []string{"customer_name", "customer", "buyer_name"}
	referenceKeys    = []string{"invoice_number", "reference", "document_number", "number"}
	amountKeys       = []string{"total_amount", "amount", "total", "grand_total"}
	dateKeys         = []string{"invoice_date", "date", "document_date", "issue_date"}
)

// Registry is the in-memory duplicate index. All operations are safe for
// concurrent use; Register performs its lookup and insert under one lock
// acquisition so two racing registrations of the same content can never
// both succeed.
type Registry struct {
	mu       sync.RWMutex
	byHash   map[string]*domain.DuplicateRecord
	byIRN    map[string]string
	order    []string // content hashes in creation order, for eviction
	capacity int
	store    port.DuplicateStore
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity overrides the default record capacity.
func WithCapacity(capacity int) Option {
	return func(r *Registry) { r.capacity = capacity }
}

// WithStore attaches a durable backing store; registered records are
// written through to it.
func WithStore(store port.DuplicateStore) Option {
	return func(r *Registry) { r.store = store }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byHash:   make(map[string]*domain.DuplicateRecord),
		byIRN:    make(map[string]string),
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hydrate loads previously persisted records from the attached store into
// the in-memory index. Intended to run once at startup.
func (r *Registry) Hydrate(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	records, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		rec := records[i]
		if _, exists := r.byHash[rec.ContentHash]; exists {
			continue
		}
		r.byHash[rec.ContentHash] = &rec
		r.byIRN[rec.IRNValue] = rec.ContentHash
		r.order = append(r.order, rec.ContentHash)
	}
	return len(records), nil
}

// CheckExact computes the invoice's content hash and returns the IRN it
// was already issued, if any.
func (r *Registry) CheckExact(inv domain.InvoiceRecord) (string, bool) {
	hash := irn.InvoiceContentHash(inv)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.byHash[hash]; ok {
		return rec.IRNValue, true
	}
	return "", false
}

// Register inserts the (content hash, IRN) pair atomically. Returns false
// without mutating when either the hash or the IRN is already present, so
// this is the single enforcement point for the uniqueness invariant.
func (r *Registry) Register(ctx context.Context, irnValue string, inv domain.InvoiceRecord, org string) bool {
	hash := irn.InvoiceContentHash(inv)
	rec := &domain.DuplicateRecord{
		ContentHash:  hash,
		IRNValue:     irnValue,
		Organization: org,
		CreatedAt:    r.now().UTC(),
		Summary:      summarize(inv),
	}

	r.mu.Lock()
	if _, exists := r.byHash[hash]; exists {
		r.mu.Unlock()
		return false
	}
	if _, exists := r.byIRN[irnValue]; exists {
		r.mu.Unlock()
		return false
	}
	r.byHash[hash] = rec
	r.byIRN[irnValue] = hash
	r.order = append(r.order, hash)
	r.evictLocked()
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Append(ctx, rec); err != nil {
			log.Printf("registry.Registry: persist record for %s failed: %v", irnValue, err)
		}
	}
	return true
}

// Lookup returns the issuance record for an IRN, if registered.
func (r *Registry) Lookup(irnValue string) (*domain.DuplicateRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, ok := r.byIRN[irnValue]
	if !ok {
		return nil, false
	}
	rec := *r.byHash[hash]
	return &rec, true
}

// Len returns the number of registered records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHash)
}

// FindSimilar scores the invoice against the organization's registered
// records and returns matches at or above threshold, best first. A zero
// threshold means DefaultSimilarityThreshold. Matches are advisory and
// never block issuance.
func (r *Registry) FindSimilar(inv domain.InvoiceRecord, org string, threshold float64) []domain.SimilarMatch {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	candidate := summarize(inv)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.SimilarMatch
	for _, rec := range r.byHash {
		if rec.Organization != org {
			continue
		}
		score := similarity(candidate, rec.Summary)
		if score >= threshold {
			cp := *rec
			matches = append(matches, domain.SimilarMatch{IRNValue: rec.IRNValue, Score: score, Record: &cp})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

// evictLocked drops the oldest 10% of records when capacity is exceeded.
// Caller must hold the write lock.
func (r *Registry) evictLocked() {
	if len(r.byHash) <= r.capacity {
		return
	}
	drop := len(r.order) / 10
	if drop < 1 {
		drop = 1
	}
	for _, hash := range r.order[:drop] {
		if rec, ok := r.byHash[hash]; ok {
			delete(r.byIRN, rec.IRNValue)
			delete(r.byHash, hash)
		}
	}
	r.order = append([]string(nil), r.order[drop:]...)
	log.Printf("registry.Registry: capacity %d exceeded, evicted %d oldest records", r.capacity, drop)
}

func summarize(inv domain.InvoiceRecord) domain.SimilaritySummary {
	amount := decimal.Zero
	for _, k := range amountKeys {
		if d, ok := inv.Decimal(k); ok {
			amount = d
			break
		}
	}
	return domain.SimilaritySummary{
		CustomerName:  normalizeName(inv.FirstString(customerNameKeys...)),
		Reference:     strings.ToUpper(inv.FirstString(referenceKeys...)),
		Amount:        amount,
		Currency:      strings.ToUpper(inv.String("currency")),
		LineItemCount: inv.LineItemCount(),
		InvoiceDate:   inv.FirstString(dateKeys...),
	}
}

// similarity computes the weighted score between two summaries.
func similarity(a, b domain.SimilaritySummary) float64 {
	score := weightCustomerName * jaccard(tokenize(a.CustomerName), tokenize(b.CustomerName))
	score += weightAmount * relativeCloseness(a.Amount, b.Amount)
	if a.Reference != "" && a.Reference == b.Reference {
		score += weightReference
	}
	if a.Currency != "" && a.Currency == b.Currency {
		score += weightCurrency
	}
	score += weightLineCount * countCloseness(a.LineItemCount, b.LineItemCount)
	if a.InvoiceDate != "" && a.InvoiceDate == b.InvoiceDate {
		score += weightDate
	}
	return score
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		tokens[tok] = true
	}
	return tokens
}

// jaccard is the token-overlap ratio of the two sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// relativeCloseness is 1 minus the relative difference between amounts,
// floored at zero.
func relativeCloseness(a, b decimal.Decimal) float64 {
	if a.IsZero() && b.IsZero() {
		return 1
	}
	max := decimal.Max(a.Abs(), b.Abs())
	if max.IsZero() {
		return 1
	}
	diff, _ := a.Sub(b).Abs().Div(max).Float64()
	if diff > 1 {
		return 0
	}
	return 1 - diff
}

func countCloseness(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	max := a
	if b > max {
		max = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(max)
}
