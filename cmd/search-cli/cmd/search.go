package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tutao/search-core/internal/app"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/output"
)

// sessionCachePath is where a search's result state is stashed so a later
// `more` invocation, in a separate process, can resume paging it: since
// model.SearchResult is itself the pagination cursor, this file is all
// that needs to survive between invocations (see internal/app/resultstate.go).
func sessionCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "tuta-search", "last-result.json"), nil
}

// telemetryLogPath is where each command's page record is appended so the
// `stats` command, itself a separate later process, can aggregate across
// every invocation instead of only seeing the in-memory recorder of its own
// short-lived process.
func telemetryLogPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "tuta-search", "telemetry.jsonl"), nil
}

// enableTelemetryPersistence wires a's recorder to append to the shared
// telemetry log. Failure to resolve the cache directory only disables
// persistence, it never fails the command that's actually running.
func enableTelemetryPersistence(a *app.App) {
	path, err := telemetryLogPath()
	if err != nil || a.Telemetry == nil {
		return
	}
	a.Telemetry.SetPersistPath(path)
}

func saveSession(state app.SearchResultState) error {
	path, err := sessionCachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func loadSession() (app.SearchResultState, error) {
	var state app.SearchResultState
	path, err := sessionCachePath()
	if err != nil {
		return state, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("no prior search to page through (run 'search-cli search' first): %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse cached session: %w", err)
	}
	return state, nil
}

type searchFlags struct {
	restrictionType string
	attributeIDs    []int
	listID          string
	start           string
	end             string
	minSuggestions  int
	maxResults      int
	jsonOutput      bool
}

func newSearchCmd() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query against the encrypted index",
		Long: `Tokenizes the query, intersects postings across its terms, filters by
restriction, and returns the first page of results, newest first.

A fully double-quoted multi-word query additionally requires the terms to
appear in that order (phrase matching). The result is cached so a
subsequent 'search-cli more' call can page through it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.restrictionType, "type", "mail", "Entity type to search (mail)")
	cmd.Flags().IntSliceVar(&flags.attributeIDs, "attr", nil, "Restrict to these attribute ids")
	cmd.Flags().StringVar(&flags.listID, "list", "", "Restrict to this list id")
	cmd.Flags().StringVar(&flags.start, "start", "", "Restrict to entities at or before this RFC3339 timestamp (the newer bound)")
	cmd.Flags().StringVar(&flags.end, "end", "", "Restrict to entities at or after this RFC3339 timestamp (the older bound)")
	cmd.Flags().IntVar(&flags.minSuggestions, "suggest", 0, "Run the suggestion path when > 0: the last query word is matched as a prefix, and a multi-word query stops after this many matching entities")
	cmd.Flags().IntVar(&flags.maxResults, "max-results", 0, "Cap the number of results on this page (0 uses the configured default)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, flags *searchFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build search core: %w", err)
	}
	defer a.Close()
	enableTelemetryPersistence(a)

	restriction, err := buildRestriction(flags.restrictionType, flags.attributeIDs, flags.listID, flags.start, flags.end)
	if err != nil {
		return err
	}

	maxResults := cfg.Pagination.DefaultMaxResults
	if flags.maxResults > 0 {
		maxResults = flags.maxResults
	}

	result, err := a.Orchestrator.Search(cmd.Context(), query, restriction, flags.minSuggestions, &maxResults)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if err := saveSession(app.ToState(result)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return printResult(cmd, result, flags.jsonOutput)
}

func newMoreCmd() *cobra.Command {
	var count int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "more",
		Short: "Fetch more results from the last search",
		Long:  `Resumes the cursor saved by the last 'search-cli search' call and pages count additional results into it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMore(cmd, count, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of additional results to fetch")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	return cmd
}

func runMore(cmd *cobra.Command, count int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	state, err := loadSession()
	if err != nil {
		return err
	}
	result, err := app.FromState(state)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build search core: %w", err)
	}
	defer a.Close()
	enableTelemetryPersistence(a)

	if err := a.Orchestrator.GetMoreSearchResults(cmd.Context(), result, count); err != nil {
		return fmt.Errorf("get more results: %w", err)
	}

	if err := saveSession(app.ToState(result)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return printResult(cmd, result, jsonOutput)
}

func newExtendCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Extend mail index coverage back to a point in time",
		Long: `Manually invokes the index extension protocol: reads fixture documents
not yet covered and writes their postings until coverage reaches --since,
or the command's context is cancelled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtend(cmd, since)
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Extend coverage back to this RFC3339 timestamp (required)")
	_ = cmd.MarkFlagRequired("since")

	return cmd
}

func runExtend(cmd *cobra.Command, since string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sinceTime, err := app.ParseTime(since)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build search core: %w", err)
	}
	defer a.Close()

	out := output.New(cmd.OutOrStdout())
	if err := a.Indexer.IndexMailboxes(cmd.Context(), sinceTime.UnixMilli()); err != nil {
		return fmt.Errorf("extend index: %w", err)
	}
	out.Success(fmt.Sprintf("index coverage now reaches %s", a.Indexer.CurrentIndexTimestamp().Format("2006-01-02T15:04:05Z07:00")))
	return nil
}

func buildRestriction(restrictionType string, attrIDs []int, listID, start, end string) (model.SearchRestriction, error) {
	r := model.SearchRestriction{Type: app.ParseRestrictionType(restrictionType)}
	for _, id := range attrIDs {
		r.AttributeIDs = append(r.AttributeIDs, uint8(id))
	}
	if listID != "" {
		l := model.ListID(listID)
		r.ListID = &l
	}
	if start != "" {
		t, err := app.ParseTime(start)
		if err != nil {
			return r, fmt.Errorf("parse --start: %w", err)
		}
		r.Start = &t
	}
	if end != "" {
		t, err := app.ParseTime(end)
		if err != nil {
			return r, fmt.Errorf("parse --end: %w", err)
		}
		r.End = &t
	}
	return r, nil
}

func printResult(cmd *cobra.Command, result *model.SearchResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(app.ToState(result))
	}

	out := output.New(cmd.OutOrStdout())
	if len(result.Results) == 0 {
		out.Warning("no results")
		return nil
	}
	out.Statusf("🔎", "%d result(s) for %q", len(result.Results), result.Query)
	for _, r := range result.Results {
		out.Status("•", fmt.Sprintf("list=%s id=%s", r.ListID, r.ID.String()))
	}
	return nil
}
