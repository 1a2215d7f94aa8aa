package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// cliDictionary holds keywords given with --keyword.
const cliDictionary = "kw.cli"

var (
	dictionariesPaths  []string
	dictionariesFormat string
)

var dictionariesCmd = &cobra.Command{
	Use:   "dictionaries",
	Short: "Manage keyword dictionaries",
	Long:  "Commands for listing and inspecting keyword dictionaries",
}

var dictionariesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available dictionaries",
	Long:  "Display dictionaries with their IDs, names and keyword counts",
	RunE:  runDictionariesList,
}

func init() {
	dictionariesCmd.AddCommand(dictionariesListCmd)
	dictionariesListCmd.Flags().StringSliceVar(&dictionariesPaths, "dictionary", nil, "Dictionary file or directory (repeatable; default builtin)")
	dictionariesListCmd.Flags().StringVar(&dictionariesFormat, "format", "table", "Output format: table, json")
}

func runDictionariesList(cmd *cobra.Command, args []string) error {
	dicts, err := loadDictionaries(dictionariesPaths, "", "", nil)
	if err != nil {
		return err
	}

	switch dictionariesFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(dicts)
	case "table":
		return outputDictionariesTable(cmd, dicts)
	default:
		return fmt.Errorf("unknown output format: %s", dictionariesFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// loadDictionaries loads the given paths, filters them by ID and appends
// extra keywords as their own dictionary. Without paths the builtin set is
// loaded unless the keywords alone were asked for.
func loadDictionaries(paths []string, include, exclude string, keywords []string) ([]*types.Dictionary, error) {
	loader := dictionary.NewLoader()

	var dicts []*types.Dictionary
	if len(paths) == 0 && (len(keywords) == 0 || include != "" || exclude != "") {
		builtin, err := loader.LoadBuiltin()
		if err != nil {
			return nil, fmt.Errorf("loading builtin dictionaries: %w", err)
		}
		dicts = builtin
	}
	for _, p := range paths {
		loaded, err := loader.LoadPath(p)
		if err != nil {
			return nil, fmt.Errorf("loading dictionaries from %s: %w", p, err)
		}
		dicts = append(dicts, loaded...)
	}
	return selectDictionaries(dicts, include, exclude, keywords)
}

// selectDictionaries applies --include/--exclude, appends the command line
// keywords as their own dictionary and validates the result.
func selectDictionaries(dicts []*types.Dictionary, include, exclude string, keywords []string) ([]*types.Dictionary, error) {
	if include != "" || exclude != "" {
		filtered, err := dictionary.Filter(dicts, dictionary.FilterConfig{
			Include: dictionary.ParsePatterns(include),
			Exclude: dictionary.ParsePatterns(exclude),
		})
		if err != nil {
			return nil, fmt.Errorf("filtering dictionaries: %w", err)
		}
		dicts = filtered
	}

	if len(keywords) > 0 {
		d := &types.Dictionary{ID: cliDictionary, Name: "Command line", Keywords: keywords}
		d.StructuralID = d.ComputeStructuralID()
		dicts = append(dicts, d)
	}

	if err := dictionary.ValidateAll(dicts); err != nil {
		return nil, err
	}
	return dicts, nil
}

func outputDictionariesTable(cmd *cobra.Command, dicts []*types.Dictionary) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tKeywords\tCategories\n")
	fmt.Fprintf(w, "--\t----\t--------\t----------\n")
	for _, d := range dicts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.ID, d.Name, len(d.Keywords), strings.Join(d.Categories, ","))
	}
	return nil
}
