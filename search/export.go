package search

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExportFormat selects the rendering of ExportResults.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatText ExportFormat = "text"
)

// ExportResults renders results as json, csv or text. It is a pure
// formatting utility with no engine state. CSV output follows RFC 4180
// quoting (embedded quotes doubled); text output renders one
// `KIND [score]: content` line per result, blank-line separated.
func ExportResults(results []SearchResult, format ExportFormat) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal results: %w", err)
		}
		return string(data), nil

	case FormatCSV:
		return exportCSV(results)

	case FormatText:
		lines := make([]string, 0, len(results))
		for _, r := range results {
			lines = append(lines, fmt.Sprintf("%s [%.2f]: %s",
				strings.ToUpper(string(r.Kind)), r.Score, r.Content))
		}
		return strings.Join(lines, "\n\n"), nil

	default:
		return "", fmt.Errorf("%w: unsupported export format %q", ErrInvalidArgument, format)
	}
}

func exportCSV(results []SearchResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "kind", "score", "content", "conversation_id", "message_id", "timestamp"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.ID,
			string(r.Kind),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			r.Content,
			r.ConversationID,
			r.MessageID,
			r.Metadata.Timestamp.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}
