package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

var (
	reportDatastore string
	reportFormat    string
	reportColor     string
	reportMaxShown  int
)

// styles holds color formatters for report output
type styles struct {
	findingHeading *color.Color
	id             *color.Color
	dictionary     *color.Color
	heading        *color.Color
	match          *color.Color
	metadata       *color.Color
}

// newStyles creates color formatters for report output
func newStyles(enabled bool) *styles {
	s := &styles{
		findingHeading: color.New(color.Bold, color.FgHiWhite),
		id:             color.New(color.FgHiGreen),
		dictionary:     color.New(color.Bold, color.FgHiBlue),
		heading:        color.New(color.Bold),
		match:          color.New(color.FgYellow),
		metadata:       color.New(color.FgHiBlue),
	}

	if !enabled {
		for _, c := range []*color.Color{s.findingHeading, s.id, s.dictionary, s.heading, s.match, s.metadata} {
			c.DisableColor()
		}
	}
	return s
}

// snippetParts holds separated snippet components for colored output
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read findings from a datastore and output a summary report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "kwmatch.ds", "Datastore directory, database file or postgres:// DSN")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportMaxShown, "max-matches", 3, "Matches shown per finding in human output")
}

func runReport(cmd *cobra.Command, args []string) error {
	storePath, err := resolveStorePath(reportDatastore)
	if err != nil {
		return err
	}

	s, err := store.New(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	findings, err := s.GetFindings()
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}
	dicts, err := s.GetDictionaries()
	if err != nil {
		return fmt.Errorf("retrieving dictionaries: %w", err)
	}

	// Attach matches to their findings
	byFinding := make(map[string][]*types.Match)
	for _, m := range matches {
		byFinding[m.FindingID] = append(byFinding[m.FindingID], m)
	}
	for _, f := range findings {
		f.Matches = byFinding[f.ID]
	}

	switch reportFormat {
	case "json":
		if findings == nil {
			findings = []*types.Finding{}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(findings)
	case "human":
		return outputReportHuman(cmd, s, findings, dicts, reportDatastore)
	case "sarif":
		return outputSARIF(cmd, s, dicts, matches)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveStorePath maps a datastore directory to its database file. DSNs
// pass through.
func resolveStorePath(path string) (string, error) {
	if path == ":memory:" {
		return "", fmt.Errorf("cannot report from in-memory store")
	}
	if store.IsPostgresDSN(path) {
		return path, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("datastore not found: %s", path)
	}
	if info.IsDir() {
		return filepath.Join(path, "datastore.db"), nil
	}
	return path, nil
}

// colorEnabled applies --color, honoring NO_COLOR and TTY detection for auto.
func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		f, ok := out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

// formatSnippetWithParts separates snippet into parts for colored output,
// truncating to maxLen bytes centered on the match.
func formatSnippetWithParts(before, matching, after []byte, maxLen int) snippetParts {
	full := string(before) + string(matching) + string(after)

	if len(full) <= maxLen {
		return snippetParts{
			before:   string(before),
			matching: string(matching),
			after:    string(after),
		}
	}

	matchStart := len(before)
	matchEnd := matchStart + len(matching)
	matchLen := len(matching)

	// If match itself exceeds maxLen, show truncated match
	if matchLen >= maxLen {
		return snippetParts{
			prefix:   "...",
			matching: string(matching[:maxLen-6]),
			suffix:   "...",
		}
	}

	availableContext := maxLen - matchLen - 6 // reserve 6 for potential "..." on each side
	halfContext := availableContext / 2

	start := matchStart - halfContext
	end := matchEnd + halfContext

	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(full) {
		start -= end - len(full)
		if start < 0 {
			start = 0
		}
		end = len(full)
	}

	parts := snippetParts{
		before:   full[start:matchStart],
		matching: full[matchStart:matchEnd],
		after:    full[matchEnd:end],
	}
	if start > 0 {
		parts.prefix = "..."
	}
	if end < len(full) {
		parts.suffix = "..."
	}
	return parts
}

func outputReportHuman(cmd *cobra.Command, s store.Store, findings []*types.Finding, dicts []*types.Dictionary, datastorePath string) error {
	out := cmd.OutOrStdout()
	st := newStyles(colorEnabled(reportColor, out))

	names := make(map[string]string, len(dicts))
	for _, d := range dicts {
		names[d.ID] = d.Name
	}

	fmt.Fprintf(out, "%s\n", st.heading.Sprint("=== kwmatch Report ==="))
	fmt.Fprintf(out, "Datastore: %s\n", datastorePath)
	fmt.Fprintf(out, "Total findings: %d\n", len(findings))

	// Summary by dictionary
	perDict := make(map[string]int)
	for _, f := range findings {
		perDict[f.DictionaryID] += len(f.Matches)
	}
	ids := make([]string, 0, len(perDict))
	for id := range perDict {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "  %s: %d match(es)\n", st.dictionary.Sprint(id), perDict[id])
	}
	fmt.Fprintln(out)

	paths := make(map[types.BlobID]string)
	for i, f := range findings {
		fmt.Fprintf(out, "%s (%s %s)\n",
			st.findingHeading.Sprintf("Finding %d/%d", i+1, len(findings)),
			st.heading.Sprint("id"),
			st.id.Sprint(f.ID))

		dictName := f.DictionaryID
		if n := names[f.DictionaryID]; n != "" {
			dictName = fmt.Sprintf("%s (%s)", n, f.DictionaryID)
		}
		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Dictionary:"), st.dictionary.Sprint(dictName))
		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Keyword:"), st.match.Sprint(f.Keyword))

		shown := f.Matches
		if reportMaxShown > 0 && len(shown) > reportMaxShown {
			fmt.Fprintf(out, "Showing %d/%d matches:\n", reportMaxShown, len(shown))
			shown = shown[:reportMaxShown]
		}

		for k, match := range shown {
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				st.heading.Sprintf("Match %d/%d", k+1, len(f.Matches)),
				st.heading.Sprint("id"),
				st.id.Sprint(match.StructuralID))

			fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("File:"), st.metadata.Sprint(blobPath(s, paths, match.BlobID)))
			fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("Blob:"), st.metadata.Sprint(match.BlobID.Hex()))

			if match.Location.Source.Start.Line > 0 {
				fmt.Fprintf(out, "    %s %d:%d-%d:%d\n",
					st.heading.Sprint("Lines:"),
					match.Location.Source.Start.Line, match.Location.Source.Start.Column,
					match.Location.Source.End.Line, match.Location.Source.End.Column)
			}

			parts := formatSnippetWithParts(match.Snippet.Before, match.Snippet.Matching, match.Snippet.After, 500)
			fmt.Fprintf(out, "\n        %s%s%s%s%s\n",
				parts.prefix,
				parts.before,
				st.match.Sprint(parts.matching),
				parts.after,
				parts.suffix)
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}
