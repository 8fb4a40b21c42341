// coderag indexes codebases into a local vector store and answers
// questions about them with retrieval-augmented generation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gcpark/coderag/internal/chunker"
	"github.com/gcpark/coderag/internal/config"
	"github.com/gcpark/coderag/internal/embedder"
	"github.com/gcpark/coderag/internal/index"
	"github.com/gcpark/coderag/internal/llm"
	"github.com/gcpark/coderag/internal/mcp"
	"github.com/gcpark/coderag/internal/rag"
	"github.com/gcpark/coderag/internal/store"
	"github.com/gcpark/coderag/pkg/types"
)

var (
	version   = "0.1.0"
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coderag",
	Short: "Semantic code search and Q&A over local codebases",
	Long: `coderag chunks source trees into functions, classes and component
sections, embeds them into a local sqlite vector store, and answers
questions about the code with retrieval-augmented generation.

Supported languages: Python, Java, JavaScript, Vue.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coderag %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase",
	Long:  `Index a codebase for semantic search. If no path is provided, indexes the current directory.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		project, _ := cmd.Flags().GetString("project")
		force, _ := cmd.Flags().GetBool("force")
		runIndex(path, project, force)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed code",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		topK, _ := cmd.Flags().GetInt("top-k")
		project, _ := cmd.Flags().GetString("project")
		language, _ := cmd.Flags().GetString("language")
		runSearch(args[0], topK, project, language)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed code",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		project, _ := cmd.Flags().GetString("project")
		runAsk(args[0], project)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Remove a project from the index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runDelete(args[0])
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a codebase and keep its index up to date",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		project, _ := cmd.Flags().GetString("project")
		runWatch(path, project)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: coderag.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	indexCmd.Flags().String("project", "", "project name (default: directory base name)")
	indexCmd.Flags().Bool("force", false, "reindex even if the project is already indexed")
	searchCmd.Flags().Int("top-k", 5, "maximum results")
	searchCmd.Flags().String("project", "", "filter by project")
	searchCmd.Flags().String("language", "", "filter by language")
	askCmd.Flags().String("project", "", "filter by project")
	watchCmd.Flags().String("project", "", "project name (default: directory base name)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// components holds the wired pipeline shared by all commands.
type components struct {
	cfg      *config.Config
	store    *store.Store
	embedder embedder.Provider
	indexer  *index.Indexer
	chain    *rag.Chain
}

func (c *components) Close() {
	c.embedder.Close()
	c.store.Close()
}

// setup loads configuration and wires the pipeline.
func setup() (*components, error) {
	path := cfgFile
	if path == "" {
		path = "coderag.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			slog.Error("invalid configuration", "error", e)
		}
		return nil, fmt.Errorf("configuration invalid")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, err
	}

	parser := chunker.New(chunker.Config{
		Root:       cfg.Codebase.Root,
		Extensions: cfg.Codebase.Extensions,
		IgnoreDirs: cfg.Codebase.IgnoreDirs,
	})

	indexer := index.New(parser, emb, st, index.Options{
		Workers:     cfg.Limits.Workers,
		MaxFileSize: cfg.Limits.MaxFileSize,
		BatchSize:   cfg.Embedding.BatchSize,
		Progress:    logProgress,
	})

	client := llm.New(llm.Config{
		Model:    cfg.LLM.Model,
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.Timeout,
	})

	chain := rag.New(emb, st, client, cfg.Search.TopK)

	return &components{
		cfg:      cfg,
		store:    st,
		embedder: emb,
		indexer:  indexer,
		chain:    chain,
	}, nil
}

func logProgress(p types.IndexProgress) {
	switch p.Phase {
	case "chunking":
		if p.ProcessedFiles%100 == 0 || p.ProcessedFiles == p.TotalFiles {
			slog.Info("chunking", "files", fmt.Sprintf("%d/%d", p.ProcessedFiles, p.TotalFiles))
		}
	case "embedding":
		slog.Info("embedding", "chunks", fmt.Sprintf("%d/%d", p.ProcessedChunks, p.TotalChunks))
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func runIndex(path, project string, force bool) {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := c.indexer.IndexPath(ctx, path, project, force)
	if err != nil {
		fatal("indexing failed", err)
	}

	if result.Skipped {
		fmt.Printf("project %q already indexed (use --force to reindex)\n", result.Project)
		return
	}
	fmt.Printf("indexed project %q: %d files, %d chunks\n", result.Project, result.IndexedFiles, result.Chunks)
}

func runSearch(query string, topK int, project, language string) {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	results, err := c.chain.SearchOnly(ctx, query, topK, buildFilters(project, language))
	if err != nil {
		fatal("search failed", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, r := range results {
		ch := r.Chunk
		fmt.Printf("%d. %s (%s %s, lines %d-%d) distance=%.4f\n",
			i+1, ch.FilePath, ch.ChunkType, ch.Name, ch.StartLine, ch.EndLine, r.Distance)
	}
}

func runAsk(question, project string) {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sources, err := c.chain.QueryStream(ctx, question, buildFilters(project, ""), func(delta string) error {
		fmt.Print(delta)
		return nil
	})
	if err != nil {
		fatal("query failed", err)
	}
	fmt.Println()

	if len(sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range sources {
			fmt.Printf("  [%d] %s (%s %s, lines %d-%d)\n", i+1, s.FilePath, s.ChunkType, s.Name, s.StartLine, s.EndLine)
		}
	}
}

func runStatus() {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	stats, err := c.store.Stats()
	if err != nil {
		fatal("failed to get stats", err)
	}

	fmt.Printf("Total chunks:  %d\n", stats.TotalChunks)
	fmt.Printf("Indexed files: %d\n", stats.IndexedFiles)
	fmt.Printf("DB size:       %d bytes\n", stats.DBSizeBytes)
	for _, p := range stats.Projects {
		fmt.Printf("\nProject %s: %d chunks, %d files\n", p.Project, p.Chunks, p.Files)
		for lang, count := range p.Languages {
			fmt.Printf("  %-12s %d\n", lang, count)
		}
	}
}

func runDelete(project string) {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	removed, err := c.store.DeleteByProject(project)
	if err != nil {
		fatal("failed to delete project", err)
	}
	fmt.Printf("removed %d chunks for project %q\n", removed, project)
}

func runWatch(path, project string) {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	// Make sure the project is indexed before watching for deltas.
	if _, err := c.indexer.IndexPath(ctx, path, project, false); err != nil {
		fatal("initial indexing failed", err)
	}

	watcher, err := index.NewWatcher(c.indexer, index.WatcherConfig{
		Root:    path,
		Project: project,
	})
	if err != nil {
		fatal("failed to create watcher", err)
	}

	if err := watcher.Watch(ctx); err != nil {
		fatal("watcher failed", err)
	}
}

func runServe() {
	c, err := setup()
	if err != nil {
		fatal("setup failed", err)
	}
	defer c.Close()

	srv := mcp.New(mcp.Config{
		Indexer: c.indexer,
		Chain:   c.chain,
		Store:   c.store,
		Version: version,
	})

	slog.Info("starting MCP server on stdio")
	if err := srv.ServeStdio(); err != nil {
		fatal("server failed", err)
	}
}

func buildFilters(project, language string) *types.SearchFilters {
	filters := &types.SearchFilters{}
	if project != "" {
		filters.Projects = []string{project}
	}
	if language != "" {
		filters.Languages = []string{language}
	}
	if len(filters.Projects) == 0 && len(filters.Languages) == 0 {
		return nil
	}
	return filters
}
