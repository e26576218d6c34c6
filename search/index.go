package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/recallkit/recall-go/embedding"
	"github.com/recallkit/recall-go/tokenizer"
)

// Index holds one entry per indexable unit (conversation or message).
// Re-indexing an existing id fully replaces the prior entry; removals of
// missing ids are no-ops.
//
// Concurrency: a single RWMutex guards the entry map and insertion order.
// Entries are immutable once stored, so readers holding entry pointers see
// a consistent snapshot even across concurrent re-indexing.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*Entry // internal key -> entry
	order   []string          // internal keys in insertion order

	embedder embedding.Embedder // optional; enables semantic scoring
	logger   *slog.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithEmbedder enables semantic vectors on indexed entries.
func WithEmbedder(e embedding.Embedder) IndexOption {
	return func(i *Index) { i.embedder = e }
}

// WithIndexLogger sets the structured logger.
func WithIndexLogger(l *slog.Logger) IndexOption {
	return func(i *Index) { i.logger = l }
}

// NewIndex creates an empty index.
func NewIndex(opts ...IndexOption) *Index {
	idx := &Index{
		entries: make(map[string]*Entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func conversationKey(id string) string { return "c:" + id }
func messageKey(id string) string      { return "m:" + id }

// IndexConversation indexes a conversation-level entry. Tokens come from
// the title plus tags; the entry content is the title.
func (i *Index) IndexConversation(ctx context.Context, conv Conversation) {
	composite := conv.Title
	if len(conv.Tags) > 0 {
		composite += " " + strings.Join(conv.Tags, " ")
	}

	entry := &Entry{
		ID:             conv.ID,
		Kind:           KindConversation,
		ConversationID: conv.ID,
		Content:        conv.Title,
		Tokens:         tokenizer.Tokenize(composite),
		Metadata: Metadata{
			Timestamp: conv.CreatedAt,
			Model:     conv.Model,
			Tags:      conv.Tags,
		},
		Vector: i.embed(ctx, composite),
	}

	i.put(conversationKey(conv.ID), entry)
}

// IndexMessage indexes a message-level entry under its conversation.
func (i *Index) IndexMessage(ctx context.Context, msg Message, conversationID string) {
	composite := msg.Content
	if len(msg.Tags) > 0 {
		composite += " " + strings.Join(msg.Tags, " ")
	}

	entry := &Entry{
		ID:             msg.ID,
		Kind:           KindMessage,
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Content:        msg.Content,
		Tokens:         tokenizer.Tokenize(composite),
		Metadata: Metadata{
			Timestamp:  msg.CreatedAt,
			Role:       msg.Role,
			Model:      msg.Model,
			TokenCount: msg.TokenCount,
			Language:   msg.Language,
			Sentiment:  msg.Sentiment,
			Tags:       msg.Tags,
		},
		Vector: i.embed(ctx, msg.Content),
	}

	i.put(messageKey(msg.ID), entry)
}

// UpdateMessage re-indexes an edited message, replacing the prior entry
// wholesale (tokens and vector are recomputed from the new content).
func (i *Index) UpdateMessage(ctx context.Context, msg Message, conversationID string) {
	i.IndexMessage(ctx, msg, conversationID)
}

// Remove deletes the entry with the given id from either namespace.
// Missing ids are a no-op.
func (i *Index) Remove(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeKeyLocked(messageKey(id))
	i.removeKeyLocked(conversationKey(id))
}

// RemoveMessage deletes a message-level entry.
func (i *Index) RemoveMessage(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeKeyLocked(messageKey(id))
}

// RemoveConversation deletes a conversation-level entry and cascades to
// every message entry belonging to it.
func (i *Index) RemoveConversation(conversationID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.removeKeyLocked(conversationKey(conversationID))

	var cascade []string
	for key, entry := range i.entries {
		if entry.Kind == KindMessage && entry.ConversationID == conversationID {
			cascade = append(cascade, key)
		}
	}
	for _, key := range cascade {
		i.removeKeyLocked(key)
	}
}

// Len returns the number of indexed entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Get returns the entry for id in either namespace, or nil when absent.
func (i *Index) Get(id string) *Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if e, ok := i.entries[messageKey(id)]; ok {
		return e
	}
	return i.entries[conversationKey(id)]
}

// snapshot returns the entries in insertion order. The returned slice is
// owned by the caller; the entries themselves are immutable.
func (i *Index) snapshot() []*Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]*Entry, 0, len(i.order))
	for _, key := range i.order {
		out = append(out, i.entries[key])
	}
	return out
}

// vocabulary returns the distinct tokens across all entries, and the
// distinct model identifiers, both used by suggestion generation.
func (i *Index) vocabulary() (tokens map[string]struct{}, models map[string]struct{}) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	tokens = make(map[string]struct{})
	models = make(map[string]struct{})
	for _, entry := range i.entries {
		for _, t := range entry.Tokens {
			tokens[t] = struct{}{}
		}
		if entry.Metadata.Model != "" {
			models[entry.Metadata.Model] = struct{}{}
		}
	}
	return tokens, models
}

// put stores entry under key, preserving the original insertion position
// on re-index so that tie-breaking by insertion order is stable.
func (i *Index) put(key string, entry *Entry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.entries[key]; !exists {
		i.order = append(i.order, key)
	}
	i.entries[key] = entry
}

func (i *Index) removeKeyLocked(key string) {
	if _, ok := i.entries[key]; !ok {
		return
	}
	delete(i.entries, key)
	for pos, k := range i.order {
		if k == key {
			i.order = append(i.order[:pos], i.order[pos+1:]...)
			break
		}
	}
}

// embed computes the optional semantic vector. Indexing has no failure
// mode, so embedding errors degrade to a lexical-only entry.
func (i *Index) embed(ctx context.Context, text string) []float32 {
	if i.embedder == nil || text == "" {
		return nil
	}
	v, err := i.embedder.Embed(ctx, text)
	if err != nil {
		i.logger.Warn("indexing without semantic vector", "error", err)
		return nil
	}
	return v
}
