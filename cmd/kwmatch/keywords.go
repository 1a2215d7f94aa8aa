package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/datastore"
	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

var (
	keywordsDatastore  string
	keywordsDictionary string
	keywordsFormat     string
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Maintain the persistent keyword store",
	Long: `Add, delete and list keywords in a datastore's keyword store. Scans run
with --keyword-store and servers started with --datastore pick the changes up.`,
}

var keywordsAddCmd = &cobra.Command{
	Use:   "add <keyword>...",
	Short: "Add keywords to a dictionary",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeywordsAdd,
}

var keywordsDeleteCmd = &cobra.Command{
	Use:   "delete <keyword>...",
	Short: "Delete keywords from one or every dictionary",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeywordsDelete,
}

var keywordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored dictionaries and keywords",
	RunE:  runKeywordsList,
}

func init() {
	keywordsCmd.PersistentFlags().StringVar(&keywordsDatastore, "datastore", "kwmatch.ds", "Datastore directory holding the keyword store")
	keywordsCmd.PersistentFlags().StringVar(&keywordsDictionary, "dictionary", "", "Dictionary ID (add defaults to kw.custom; delete defaults to every dictionary)")
	keywordsListCmd.Flags().StringVar(&keywordsFormat, "format", "table", "Output format: table, json")

	keywordsCmd.AddCommand(keywordsAddCmd, keywordsDeleteCmd, keywordsListCmd)
}

func runKeywordsAdd(cmd *cobra.Command, args []string) error {
	ds, err := datastore.Open(keywordsDatastore, datastore.Options{})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()
	ks := ds.Keywords

	dictID := keywordsDictionary
	if dictID == "" {
		dictID = "kw.custom"
	}

	added := 0
	for _, kw := range args {
		if kw == "" {
			return dictionary.ErrEmptyKeyword
		}
		ok, err := ks.AddKeyword(dictID, kw)
		if errors.Is(err, store.ErrNotFound) {
			err = ks.PutDictionary(&types.Dictionary{ID: dictID, Name: dictID, Keywords: []string{kw}})
			ok = err == nil
		}
		if err != nil {
			return fmt.Errorf("adding %q: %w", kw, err)
		}
		if ok {
			added++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %d keyword(s) to %s\n", added, dictID)
	return nil
}

func runKeywordsDelete(cmd *cobra.Command, args []string) error {
	ds, err := datastore.Open(keywordsDatastore, datastore.Options{})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()
	ks := ds.Keywords

	ids := []string{keywordsDictionary}
	if keywordsDictionary == "" {
		dicts, err := ks.Dictionaries()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, d := range dicts {
			ids = append(ids, d.ID)
		}
	}

	removed := 0
	for _, kw := range args {
		for _, id := range ids {
			ok, err := ks.DeleteKeyword(id, kw)
			if err != nil {
				return fmt.Errorf("deleting %q from %s: %w", kw, id, err)
			}
			if ok {
				removed++
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d keyword(s)\n", removed)
	return nil
}

func runKeywordsList(cmd *cobra.Command, args []string) error {
	ds, err := datastore.Open(keywordsDatastore, datastore.Options{})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()
	ks := ds.Keywords

	var dicts []*types.Dictionary
	if keywordsDictionary != "" {
		d, err := ks.Dictionary(keywordsDictionary)
		if err != nil {
			return err
		}
		dicts = []*types.Dictionary{d}
	} else if dicts, err = ks.Dictionaries(); err != nil {
		return err
	}

	switch keywordsFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(dicts)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintf(w, "Dictionary\tKeyword\n")
		fmt.Fprintf(w, "----------\t-------\n")
		for _, d := range dicts {
			for _, kw := range d.Keywords {
				fmt.Fprintf(w, "%s\t%s\n", d.ID, kw)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", keywordsFormat)
	}
}
