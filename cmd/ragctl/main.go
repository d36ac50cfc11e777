// Package main provides ragctl, a command line client that works directly
// against the configured store: ingest files, ask questions, inspect
// documents and telemetry, and sync a GitHub directory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/rag-assistant/internal/app"
	"github.com/bull/rag-assistant/internal/config"
	"github.com/bull/rag-assistant/internal/logging"
	"github.com/bull/rag-assistant/internal/rag"
)

var (
	envFile string
	jsonOut bool
	verbose bool
	topK    int
	limit   int
	ghOwner string
	ghRepo  string
	ghPath  string
	ghRef   string
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Document Q&A command line client",
	Long: `ragctl manages the document index and runs queries against it.

Configuration comes from the same sources as the server: defaults, a .env
file, legacy variables (OPENAI_API_KEY, DATABASE_URL, QDRANT_HOST, ...) and
RAG_-prefixed variables such as RAG_STORE_DRIVER=sqlite.`,
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract, chunk, embed and store local files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Show the most similar chunks without generating an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated query telemetry",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent queries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index every supported file below a GitHub directory",
	Long: `Fetches every supported file below a repository directory and indexes it.

This command:
1. Opens the configured store
2. Resolves the latest commit touching the directory
3. Lists supported files recursively
4. Extracts, chunks and embeds each file
5. Stores each document with its chunks

Files that fail are reported and skipped. Environment variables:
  GITHUB_TOKEN      GitHub token for higher rate limits (optional)
  RAG_GITHUB_OWNER  Repository owner (or --owner)
  RAG_GITHUB_REPO   Repository name (or --repo)
  RAG_GITHUB_PATH   Directory to index (or --path)`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	queryCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	searchCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records (default from config)")

	syncCmd.Flags().StringVar(&ghOwner, "owner", "", "repository owner")
	syncCmd.Flags().StringVar(&ghRepo, "repo", "", "repository name")
	syncCmd.Flags().StringVar(&ghPath, "path", "", "directory inside the repository")
	syncCmd.Flags().StringVar(&ghRef, "ref", "", "branch, tag or commit")

	rootCmd.AddCommand(ingestCmd, queryCmd, searchCmd, docsCmd, deleteCmd, statsCmd, historyCmd, syncCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// open loads configuration and assembles the components for one command.
func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(config.Options{EnvFiles: []string{envFile}})
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger := logging.Setup(cfg.Log)
	return app.New(ctx, cfg, logger)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := a.Service.Upload(ctx, filepath.Base(path), data)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (%d chunks, %s)\n", doc.ID, doc.Filename, doc.ChunkCount, doc.Format)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Service.Query(ctx, rag.Request{Query: strings.Join(args, " "), TopK: topK})
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Answer)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for _, src := range resp.Sources {
		fmt.Fprintf(out, "  - %s #%d (%.3f)\n", src.DocumentID, src.ChunkIndex, src.Score)
	}
	fmt.Fprintf(out, "\n%d tokens, %.0f ms\n", resp.TokenCount, resp.LatencyMS)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Service.Search(ctx, strings.Join(args, " "), topK)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, results)
	}
	out := cmd.OutOrStdout()
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s #%d (%.3f)\n   %s\n", i+1, r.DocumentID, r.ChunkIndex, r.Score, preview(r.Text, 160))
	}
	return nil
}

func runDocs(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.Service.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, docs)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tFORMAT\tSIZE\tCHUNKS\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			d.ID, d.Filename, d.Format, d.FileSize, d.ChunkCount, d.UploadedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Service.DeleteDocument(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d chunks)\n", args[0], n)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Service.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, stats)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queries:       %d\n", stats.TotalQueries)
	fmt.Fprintf(out, "Avg latency:   %.1f ms\n", stats.AvgLatencyMS)
	fmt.Fprintf(out, "Total tokens:  %d\n", stats.TotalTokens)
	fmt.Fprintf(out, "Total cost:    $%.4f\n", stats.TotalCost)
	fmt.Fprintf(out, "Success rate:  %.1f%%\n", stats.SuccessRate)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.Service.History(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, records)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOK\tLATENCY\tTOKENS\tQUERY")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%t\t%.0fms\t%d\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.Success, r.LatencyMS, r.TokenCount, preview(r.Query, 60))
	}
	return w.Flush()
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	start := time.Now()

	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gh := &a.Config.GitHub
	override(&gh.Owner, ghOwner)
	override(&gh.Repo, ghRepo)
	override(&gh.Path, ghPath)
	override(&gh.Ref, ghRef)

	fetcher, err := a.GitHubSource()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexing %s/%s:%s@%s...\n", gh.Owner, gh.Repo, gh.Path, gh.Ref)

	result, err := a.Service.Sync(ctx, fetcher)
	if err != nil {
		return fmt.Errorf("Indexing failed: %w", err)
	}
	if jsonOut {
		return printJSON(cmd, result)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sync complete!")
	fmt.Fprintf(out, "  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Second))
	fmt.Fprintf(out, "  Commit: %s\n", result.CommitSHA)

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
