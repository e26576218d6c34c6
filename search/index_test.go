package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall-go/embedding/mock"
)

func TestIndexMessageAndGet(t *testing.T) {
	idx := NewIndex()
	idx.IndexMessage(context.Background(), Message{
		ID:        "m1",
		Role:      "user",
		Content:   "The quick brown fox",
		CreatedAt: time.Now(),
	}, "c1")

	entry := idx.Get("m1")
	require.NotNil(t, entry)
	assert.Equal(t, KindMessage, entry.Kind)
	assert.Equal(t, "c1", entry.ConversationID)
	assert.Equal(t, []string{"quick", "brown", "fox"}, entry.Tokens)
}

func TestReindexIsIdempotent(t *testing.T) {
	idx := NewIndex(WithEmbedder(mock.NewWithDimensions(16)))
	msg := Message{ID: "m1", Content: "stable content", CreatedAt: time.Now()}

	idx.IndexMessage(context.Background(), msg, "c1")
	first := idx.Get("m1")

	idx.IndexMessage(context.Background(), msg, "c1")
	second := idx.Get("m1")

	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, first.Tokens, second.Tokens)
	assert.Equal(t, first.Vector, second.Vector)
}

func TestReindexReplacesEntry(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "m1", Content: "original words"}, "c1")
	idx.UpdateMessage(ctx, Message{ID: "m1", Content: "replacement text"}, "c1")

	entry := idx.Get("m1")
	require.NotNil(t, entry)
	assert.Equal(t, "replacement text", entry.Content)
	assert.Equal(t, []string{"replacement", "text"}, entry.Tokens)
	assert.Equal(t, 1, idx.Len())
}

func TestConversationTokensIncludeTags(t *testing.T) {
	idx := NewIndex()
	idx.IndexConversation(context.Background(), Conversation{
		ID:    "c1",
		Title: "Project planning",
		Tags:  []string{"roadmap"},
	})

	entry := idx.Get("c1")
	require.NotNil(t, entry)
	assert.Contains(t, entry.Tokens, "roadmap")
	assert.Equal(t, "Project planning", entry.Content)
}

func TestRemoveConversationCascades(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	idx.IndexConversation(ctx, Conversation{ID: "c1", Title: "first"})
	idx.IndexMessage(ctx, Message{ID: "m1", Content: "one"}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m2", Content: "two"}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m3", Content: "three"}, "c2")

	idx.RemoveConversation("c1")

	assert.Nil(t, idx.Get("c1"))
	assert.Nil(t, idx.Get("m1"))
	assert.Nil(t, idx.Get("m2"))
	assert.NotNil(t, idx.Get("m3"))
	assert.Equal(t, 1, idx.Len())
}

func TestRemoveMissingIDIsNoop(t *testing.T) {
	idx := NewIndex()
	idx.IndexMessage(context.Background(), Message{ID: "m1", Content: "keep"}, "c1")

	idx.Remove("absent")
	idx.RemoveConversation("absent")

	assert.Equal(t, 1, idx.Len())
}

func TestMessageAndConversationNamespacesCoexist(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	// Same opaque id in both namespaces.
	idx.IndexConversation(ctx, Conversation{ID: "x", Title: "conversation body"})
	idx.IndexMessage(ctx, Message{ID: "x", Content: "message body"}, "x")

	assert.Equal(t, 2, idx.Len())

	idx.RemoveMessage("x")
	assert.Equal(t, 1, idx.Len())
	require.NotNil(t, idx.Get("x"))
	assert.Equal(t, KindConversation, idx.Get("x").Kind)
}
