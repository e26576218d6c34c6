package search

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() []SearchResult {
	return []SearchResult{
		{
			ID:             "m1",
			Kind:           KindMessage,
			Content:        `He said "hello" and left`,
			Score:          12.345,
			ConversationID: "c1",
			MessageID:      "m1",
			Metadata:       Metadata{Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		},
		{
			ID:             "c2",
			Kind:           KindConversation,
			Content:        "Planning notes",
			Score:          3.0,
			ConversationID: "c2",
		},
	}
}

func TestExportJSON(t *testing.T) {
	out, err := ExportResults(exportFixture(), FormatJSON)
	require.NoError(t, err)

	var decoded []SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "m1", decoded[0].ID)
}

func TestExportCSVQuoteDoubling(t *testing.T) {
	out, err := ExportResults(exportFixture(), FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,kind,score,content,conversation_id,message_id,timestamp", lines[0])
	// RFC 4180: embedded quotes doubled, field quoted.
	assert.Contains(t, lines[1], `"He said ""hello"" and left"`)
}

func TestExportText(t *testing.T) {
	out, err := ExportResults(exportFixture(), FormatText)
	require.NoError(t, err)

	blocks := strings.Split(out, "\n\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, `MESSAGE [12.35]: He said "hello" and left`, blocks[0])
	assert.Equal(t, "CONVERSATION [3.00]: Planning notes", blocks[1])
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := ExportResults(exportFixture(), "xml")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExportEmptyResults(t *testing.T) {
	out, err := ExportResults(nil, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
