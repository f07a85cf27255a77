package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/chronicle-npc/internal/config"
	"github.com/jwebster45206/chronicle-npc/internal/inspect"
	"github.com/jwebster45206/chronicle-npc/internal/logger"
	"github.com/jwebster45206/chronicle-npc/internal/vectorstore"
)

// storeOpener opens the vector store a command reads.
type storeOpener func(cfg *config.Config, log *slog.Logger) (vectorstore.Store, error)

type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   vectorstore.Store
	backend *inspect.BackendClient
	open    storeOpener

	collection string
}

var agentSuggestions = []string{
	"What applications do I use most?",
	"Show me my productivity patterns",
	"When am I most active?",
	"Analyze my recent coding session",
	"What files have I been working on?",
	"Give me productivity recommendations",
}

func newRootCommand(open storeOpener) *cobra.Command {
	if open == nil {
		open = openStore
	}
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect the vector store and tracked activities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.store != nil {
				_ = a.store.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&a.collection, "collection", "c", "", "activity collection (default ACTIVITY_COLLECTION)")

	root.AddCommand(
		a.statusCommand(),
		a.collectionsCommand(),
		a.analyzeCommand(),
		a.exportCommand(),
		a.searchCommand(),
		a.chatCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a.cfg = cfg
	// Diagnostics go to the terminal; the logger only carries warnings.
	cfg.LogLevel = slog.LevelWarn
	a.log = logger.Setup(cfg)
	if a.collection == "" {
		a.collection = cfg.ActivityCollection
	}

	store, err := a.open(cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	a.store = store
	a.backend = inspect.NewBackendClient(cfg.BackendURL, cfg.OllamaBaseURL, a.log)
	return nil
}

func (a *app) inspector() *inspect.Inspector {
	return inspect.New(a.store, a.collection, a.log)
}

func openStore(cfg *config.Config, log *slog.Logger) (vectorstore.Store, error) {
	if cfg.VectorStore == config.VectorStoreMemory {
		return vectorstore.NewMemoryStore(), nil
	}
	return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
	}, log)
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the vector store, the backend and Ollama",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printStatus(cmd.Context(), cmd.OutOrStdout())
			return nil
		},
	}
}

func (a *app) printStatus(ctx context.Context, out io.Writer) (storeOK, backendOK, ollamaOK bool) {
	fmt.Fprintf(out, "Checking Services Status\n%s\n", strings.Repeat("-", 40))

	if err := a.store.Ping(ctx); err != nil {
		fmt.Fprintf(out, "Vector store connection failed: %v\n", err)
	} else {
		fmt.Fprintf(out, "Vector store is running (%s)\n", a.cfg.VectorStore)
		storeOK = true
	}

	if h, err := a.backend.Health(ctx); err != nil {
		fmt.Fprintf(out, "Backend connection failed: %v\n", err)
	} else {
		fmt.Fprintf(out, "Backend is running\n   Events count: %d\n   Tracking: %t\n", h.EventsCount, h.IsTracking)
		backendOK = true
	}

	if models, err := a.backend.Models(ctx); err != nil {
		fmt.Fprintf(out, "Ollama connection failed: %v\n", err)
	} else {
		available := slices.ContainsFunc(models, func(name string) bool {
			return strings.Contains(name, a.cfg.OllamaModel)
		})
		fmt.Fprintf(out, "Ollama is running\n   Models: %d\n   %s available: %t\n", len(models), a.cfg.OllamaModel, available)
		ollamaOK = true
	}

	if backendOK {
		rules, err := a.backend.Filters(ctx)
		switch {
		case err != nil || len(rules) == 0:
			fmt.Fprintf(out, "\nNo filter rules found\n")
		default:
			fmt.Fprintf(out, "\nActive Filter Rules:\n")
			for _, r := range rules {
				mark := "off"
				if r.Enabled {
					mark = "on "
				}
				fmt.Fprintf(out, "  [%s] %s: %s\n", mark, r.Name, r.Pattern)
			}
		}
	}
	return storeOK, backendOK, ollamaOK
}

func (a *app) collectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.store.ListCollections(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing collections: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Collections found: %d\n", len(names))
			for _, n := range names {
				fmt.Fprintf(out, "  - %s\n", n)
			}
			return nil
		},
	}
}

func (a *app) analyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Summarize the activity collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.inspector().Analyze(cmd.Context())
			if err != nil {
				return fmt.Errorf("error analyzing collection: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printReport(out io.Writer, r *inspect.Report) {
	fmt.Fprintf(out, "Collection '%s' Analysis:\n  Total documents: %d\n", r.Collection, r.Total)
	if r.Total == 0 {
		return
	}

	fmt.Fprintf(out, "\nSample Documents (showing %d of %d):\n", len(r.Samples), r.Total)
	for i, s := range r.Samples {
		fmt.Fprintf(out, "\n--- Document %d ---\n", i+1)
		fmt.Fprintf(out, "ID: %s\nType: %s\nTime: %s\n", s.ID, s.Type, formatTime(s.Timestamp, time.DateTime))
		fmt.Fprintf(out, "Content: %s...\n", truncate(s.Content, 150))
		if d := s.Detail(); d != "" {
			fmt.Fprintln(out, d)
		}
	}

	fmt.Fprintf(out, "\nActivity Types Distribution:\n")
	for _, t := range r.Types {
		fmt.Fprintf(out, "  %s: %d (%.1f%%)\n", t.Type, t.Count, t.Percent)
	}
	fmt.Fprintf(out, "\nMost Active Hours:\n")
	for _, h := range r.Hours {
		fmt.Fprintf(out, "  %02d:00 - %d activities\n", h.Hour, h.Count)
	}
}

func (a *app) exportCommand() *cobra.Command {
	var filename string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every activity to a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			// Backend stats are optional context for the export.
			stats, err := a.backend.Stats(ctx)
			if err != nil {
				a.log.Debug("Backend stats unavailable", "error", err)
			}

			export, err := a.inspector().BuildExport(ctx, stats)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			if export == nil {
				fmt.Fprintln(out, "No data to export")
				return nil
			}
			if filename == "" {
				filename = inspect.ExportFilename(time.Now())
			}

			fmt.Fprintf(out, "Exporting %d documents to %s...\n", export.Info.TotalDocuments, filename)
			f, err := os.Create(filename)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			n, err := export.WriteJSON(f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			fmt.Fprintf(out, "Data exported successfully to %s\nFile size: %.2f KB\n", filename, float64(n)/1024)
			summary := export.Summary()
			types := make([]string, 0, len(summary))
			for t := range summary {
				types = append(types, t)
			}
			slices.Sort(types)
			fmt.Fprintf(out, "\nExport Summary:\n")
			for _, t := range types {
				fmt.Fprintf(out, "  %s: %d\n", t, summary[t])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filename, "output", "o", "", "output file (default chronicle_data_<timestamp>.json)")
	return cmd
}

func (a *app) searchCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search activities by text, or list recent ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			hits, err := a.inspector().Search(cmd.Context(), query, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if query != "" {
				fmt.Fprintf(out, "Searching for: '%s'\nFound %d matching documents:\n", query, len(hits))
			} else {
				fmt.Fprintf(out, "Recent %d activities:\n", len(hits))
			}
			for i, h := range hits {
				fmt.Fprintf(out, "\n%d. %s - %s\n   %s...\n", i+1, h.Type, formatTime(h.Timestamp, time.TimeOnly), truncate(h.Content, 100))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func (a *app) chatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the backend agent about tracked activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "You: ",
				HistoryFile:     filepath.Join(os.TempDir(), ".chronicle_inspect_history"),
				HistoryLimit:    100,
				InterruptPrompt: "^C",
				EOFPrompt:       "quit",
			})
			if err != nil {
				return fmt.Errorf("error initializing readline: %w", err)
			}
			defer func() {
				_ = rl.Close()
			}()
			return a.chatLoop(cmd.Context(), rl.Readline, rl.Stdout())
		},
	}
}

// chatLoop reads questions until quit, interrupt or end of input.
func (a *app) chatLoop(ctx context.Context, readLine func() (string, error), out io.Writer) error {
	fmt.Fprintf(out, "Chronicle AI Chat Session\nType 'quit' to exit, 'help' for suggestions\n%s\n", strings.Repeat("-", 40))
	for {
		line, err := readLine()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			fmt.Fprintln(out, "\nTry asking:")
			for i, s := range agentSuggestions {
				fmt.Fprintf(out, "  %d. %s\n", i+1, s)
			}
			continue
		}

		fmt.Fprintln(out, "\nChronicle AI: Thinking...")
		answer, err := a.backend.Query(ctx, input)
		if err != nil {
			answer = "Error querying agent: " + err.Error()
		}
		fmt.Fprintf(out, "\nChronicle AI: %s\n", answer)
	}
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(layout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
