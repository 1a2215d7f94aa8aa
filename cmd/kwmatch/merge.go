package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/store"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple kwmatch result databases",
	Long: `Merge multiple kwmatch result databases into a single output database.

This is useful for combining results from distributed scans or
merging results from different scan targets. Datastore directories
are accepted in place of database files.

Deduplication is automatic - duplicate blobs, matches, and findings
are only stored once in the merged database.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	sources := make([]string, 0, len(args))
	for _, a := range args {
		p, err := resolveStorePath(a)
		if err != nil {
			return err
		}
		sources = append(sources, p)
	}

	stats, err := store.MergePaths(store.MergeConfig{
		SourcePaths: sources,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Merge complete:\n")
	fmt.Fprintf(out, "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(out, "  Blobs merged: %d\n", stats.BlobsMerged)
	fmt.Fprintf(out, "  Dictionaries merged: %d\n", stats.DictionariesMerged)
	fmt.Fprintf(out, "  Matches merged: %d\n", stats.MatchesMerged)
	fmt.Fprintf(out, "  Findings merged: %d\n", stats.FindingsMerged)
	fmt.Fprintf(out, "  Provenance merged: %d\n", stats.ProvenanceMerged)
	fmt.Fprintf(out, "Output: %s\n", mergeOutput)

	return nil
}
