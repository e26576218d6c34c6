// Package chromem adapts chromem-go, a pure-Go embedded vector
// database, as a memory.VectorIndex. Each owner gets its own collection
// for namespace isolation.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/recallkit/recall-go/memory"
)

// Index implements memory.VectorIndex on top of chromem-go.
type Index struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New returns an empty in-process index.
func New() *Index {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func collectionName(owner string) string {
	if owner == "" {
		return "global"
	}
	return "owner_" + owner
}

func (x *Index) collection(owner string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, ok := x.collections[owner]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[owner]; ok {
		return col, nil
	}
	col, err := x.db.CreateCollection(collectionName(owner), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collections[owner] = col
	return col, nil
}

// Upsert implements memory.VectorIndex. Only the id and embedding are
// stored; record payloads live in the owning store.
func (x *Index) Upsert(ctx context.Context, owner string, record *memory.Record) error {
	col, err := x.collection(owner)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        record.ID,
		Content:   record.ID,
		Embedding: record.Embedding,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Remove implements memory.VectorIndex.
func (x *Index) Remove(ctx context.Context, owner, id string) error {
	x.mu.RLock()
	col, ok := x.collections[owner]
	x.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Clear implements memory.VectorIndex, dropping the owner's collection.
func (x *Index) Clear(_ context.Context, owner string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.collections[owner]; !ok {
		return nil
	}
	if err := x.db.DeleteCollection(collectionName(owner)); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(x.collections, owner)
	return nil
}

// Query implements memory.VectorIndex. chromem rejects nResults larger
// than the collection, so the limit is retried downward until it fits.
func (x *Index) Query(ctx context.Context, owner string, embedding []float32, limit int) ([]memory.VectorMatch, error) {
	x.mu.RLock()
	col, ok := x.collections[owner]
	x.mu.RUnlock()
	if !ok || limit <= 0 {
		return nil, nil
	}

	var results []chromem.Result
	for n := limit; n >= 1; n-- {
		var err error
		results, err = col.QueryEmbedding(ctx, embedding, n, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	matches := make([]memory.VectorMatch, len(results))
	for i, r := range results {
		matches[i] = memory.VectorMatch{ID: r.ID, Similarity: float64(r.Similarity)}
	}
	return matches, nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
