package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall-go/search"
)

// conversationsFile is the JSON shape the search command ingests: an
// export of conversations with their messages.
type conversationsFile struct {
	Conversations []struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Model     string    `json:"model"`
		Tags      []string  `json:"tags"`
		CreatedAt time.Time `json:"createdAt"`
		Messages  []struct {
			ID         string    `json:"id"`
			Role       string    `json:"role"`
			Content    string    `json:"content"`
			Model      string    `json:"model"`
			TokenCount int       `json:"tokenCount"`
			Language   string    `json:"language"`
			Sentiment  *float64  `json:"sentiment"`
			Tags       []string  `json:"tags"`
			CreatedAt  time.Time `json:"createdAt"`
		} `json:"messages"`
	} `json:"conversations"`
}

func searchCmd() *cobra.Command {
	var (
		file   string
		format string
		role   string
		model  string
		limit  int
		offset int
		sortBy string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a conversations JSON export",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read conversations file: %w", err)
			}
			var input conversationsFile
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("parse conversations file: %w", err)
			}

			embedder, err := newEmbedder(cfg.cli)
			if err != nil {
				return err
			}
			index := search.NewIndex(search.WithEmbedder(embedder))
			ctx := cmd.Context()
			for _, conv := range input.Conversations {
				index.IndexConversation(ctx, search.Conversation{
					ID:        conv.ID,
					Title:     conv.Title,
					Model:     conv.Model,
					Tags:      conv.Tags,
					CreatedAt: conv.CreatedAt,
				})
				for _, msg := range conv.Messages {
					index.IndexMessage(ctx, search.Message{
						ID:         msg.ID,
						Role:       msg.Role,
						Content:    msg.Content,
						Model:      msg.Model,
						TokenCount: msg.TokenCount,
						Language:   msg.Language,
						Sentiment:  msg.Sentiment,
						Tags:       msg.Tags,
						CreatedAt:  msg.CreatedAt,
					}, conv.ID)
				}
			}

			query := search.Query{
				Limit:  limit,
				Offset: offset,
				SortBy: search.SortBy(sortBy),
			}
			if len(args) == 1 {
				query.Text = args[0]
			}
			if role != "" {
				query.Filters.Role = role
			}
			if model != "" {
				query.Filters.Models = []string{model}
			}

			engine := search.NewEngine(index, search.WithQueryEmbedder(embedder))
			resp, err := engine.Search(ctx, query)
			if err != nil {
				return err
			}

			out, err := search.ExportResults(resp.Results, search.ExportFormat(format))
			if err != nil {
				return err
			}
			fmt.Println(out)
			fmt.Fprintf(os.Stderr, "%d of %d results\n", len(resp.Results), resp.TotalCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "conversations.json", "conversations JSON export to search")
	cmd.Flags().StringVar(&format, "format", "text", "output format: json|csv|text")
	cmd.Flags().StringVar(&role, "role", "", "filter by message role")
	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "result offset")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort key: relevance|date|tokenCount|length")
	return cmd
}
