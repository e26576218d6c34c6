// Command recall is a small operational front end over the recall-go
// library: a per-owner memory store persisted to SQLite, plus a one-shot
// search over a conversations JSON file.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall-go/memory"
	memsqlite "github.com/recallkit/recall-go/memory/persist/sqlite"
	"github.com/recallkit/recall-go/memory/vecindex/chromem"
)

var (
	cfgPath string
	dbPath  string
	owner   string
	verbose bool

	cfg *cobraConfig
)

// cobraConfig bundles everything the subcommands need.
type cobraConfig struct {
	cli   *cliConfig
	store *memory.Store
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "recall",
		Short:         "Searchable conversations and decaying memories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initRuntime()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cfg != nil && cfg.store != nil {
				cfg.store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.recall/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default ~/.recall/recall.db)")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "memory owner id (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(rememberCmd())
	rootCmd.AddCommand(recallCmd())
	rootCmd.AddCommand(forgetCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(consolidateCmd())
	rootCmd.AddCommand(searchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initRuntime() error {
	loaded, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		loaded.DBPath = dbPath
	}
	if owner != "" {
		loaded.Owner = owner
	}

	level := parseLevel(loaded.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(loaded.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	records, err := memsqlite.NewDB(loaded.DBPath)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(loaded)
	if err != nil {
		records.Close()
		return err
	}

	cfg = &cobraConfig{
		cli: loaded,
		store: memory.NewStore(embedder,
			memory.WithRecordStore(records),
			memory.WithVectorIndex(chromem.New()),
			memory.WithLogger(logger),
		),
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func rememberCmd() *cobra.Command {
	var (
		memType    string
		importance float64
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Store a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &memory.AddOptions{Tags: tags}
			if cmd.Flags().Changed("importance") {
				opts.Importance = &importance
			}
			rec, err := cfg.store.AddMemory(cmd.Context(), cfg.cli.Owner, args[0], memory.Type(memType), opts)
			if err != nil {
				return err
			}
			fmt.Printf("remembered %s (importance %.2f)\n", rec.ID, rec.Importance)
			return nil
		},
	}
	cmd.Flags().StringVar(&memType, "type", string(memory.TypeSemantic), "memory type: personal|factual|procedural|episodic|semantic")
	cmd.Flags().Float64Var(&importance, "importance", 0, "explicit importance in [0,1]")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	return cmd
}

func recallCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recall <context>",
		Short: "Recall memories relevant to a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matches, err := cfg.store.RecallMemories(cmd.Context(), cfg.cli.Owner, args[0], limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("nothing relevant remembered")
				return nil
			}
			for _, m := range matches {
				fmt.Printf("[%.3f] (%s) %s\n", m.Relevance, m.Record.Type, m.Record.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 5)")
	return cmd
}

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Apply the forgetting curve to the owner's memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.store.ApplyForgettingCurve(cmd.Context(), cfg.cli.Owner)
			if err != nil {
				return err
			}
			fmt.Printf("forgot %d memories\n", n)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics for the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := cfg.store.GetStats(cmd.Context(), cfg.cli.Owner)
			if err != nil {
				return err
			}
			fmt.Printf("total: %d\n", stats.TotalCount)
			fmt.Printf("average importance: %.3f\n", stats.AverageImportance)
			fmt.Printf("estimated size: %d bytes\n", stats.EstimatedSizeBytes)
			for typ, n := range stats.CountsByType {
				fmt.Printf("  %s: %d\n", typ, n)
			}
			return nil
		},
	}
}

func consolidateCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge near-duplicate memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.store.ConsolidateMemories(cmd.Context(), cfg.cli.Owner, threshold)
			if err != nil {
				return err
			}
			fmt.Printf("merged %d memories\n", n)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold (default 0.9)")
	return cmd
}
