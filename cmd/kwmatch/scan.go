package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/datastore"
	"github.com/praetorian-inc/kwmatch/pkg/enum"
	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/sarif"
	"github.com/praetorian-inc/kwmatch/pkg/scanner"
	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

var (
	scanDictionaries   []string
	scanInclude        string
	scanExclude        string
	scanKeywords       []string
	scanKeywordStore   bool
	scanMode           string
	scanDatastore      string
	scanStoreURL       string
	scanStoreBlobs     bool
	scanOutputFormat   string
	scanGit            bool
	scanHistory        bool
	scanNativeGit      bool
	scanMaxFileSize    int64
	scanIncludeHidden  bool
	scanContextLines   int
	scanIncremental    bool
	scanExtract        string
	scanDecompress     bool
	scanS3Bucket       string
	scanS3Prefix       string
	scanS3Region       string
	scanS3Profile      string
	scanS3Endpoint     string
	scanAzureContainer string
	scanAzurePrefix    string
	scanAzureAccount   string
)

var scanCmd = &cobra.Command{
	Use:   "scan [target]",
	Short: "Scan a target for dictionary keywords",
	Long: `Scan a file, directory, or git repository for dictionary keywords.
Object storage is scanned with --s3-bucket or --azure-container, with or
without a local target.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanDictionaries, "dictionary", nil, "Dictionary file or directory (repeatable; default builtin)")
	scanCmd.Flags().StringVar(&scanInclude, "include", "", "Include dictionaries whose ID matches a regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanExclude, "exclude", "", "Exclude dictionaries whose ID matches a regex (comma-separated)")
	scanCmd.Flags().StringSliceVar(&scanKeywords, "keyword", nil, "Extra keyword to match (repeatable)")
	scanCmd.Flags().BoolVar(&scanKeywordStore, "keyword-store", false, "Use and update the datastore's persistent keyword store")
	scanCmd.Flags().StringVar(&scanMode, "mode", "all", "Match mode: all (every occurrence), greedy (leftmost-longest)")
	scanCmd.Flags().StringVar(&scanDatastore, "datastore", "kwmatch.ds", "Datastore directory")
	scanCmd.Flags().StringVar(&scanStoreURL, "store-url", "", "Result database DSN (postgres://...) instead of the datastore's SQLite file")
	scanCmd.Flags().BoolVar(&scanStoreBlobs, "store-blobs", false, "Keep scanned content in the datastore")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().BoolVar(&scanGit, "git", false, "Treat target as git repository (scan the HEAD tree)")
	scanCmd.Flags().BoolVar(&scanHistory, "history", false, "Scan every commit of a git repository (implies --git)")
	scanCmd.Flags().BoolVar(&scanNativeGit, "native-git", true, "Read --history through the git binary when installed (faster, no commit attribution)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().IntVar(&scanContextLines, "context-lines", 3, "Lines of context before/after matches (0 to disable)")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
	scanCmd.Flags().StringVar(&scanExtract, "extract", "", "Extract text from documents and archives: xlsx,docx,pdf,zip,7z or all")
	scanCmd.Flags().BoolVar(&scanDecompress, "decompress", true, "Inflate .gz and .zst files before matching")
	scanCmd.Flags().StringVar(&scanS3Bucket, "s3-bucket", "", "Scan objects of an S3 bucket")
	scanCmd.Flags().StringVar(&scanS3Prefix, "s3-prefix", "", "Only scan S3 keys with this prefix")
	scanCmd.Flags().StringVar(&scanS3Region, "s3-region", "", "S3 region")
	scanCmd.Flags().StringVar(&scanS3Profile, "s3-profile", "", "AWS shared config profile")
	scanCmd.Flags().StringVar(&scanS3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	scanCmd.Flags().StringVar(&scanAzureContainer, "azure-container", "", "Scan blobs of an Azure storage container")
	scanCmd.Flags().StringVar(&scanAzurePrefix, "azure-prefix", "", "Only scan Azure blobs with this prefix")
	scanCmd.Flags().StringVar(&scanAzureAccount, "azure-account-url", "", "Azure account URL (default: AZURE_STORAGE_CONNECTION_STRING)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && scanS3Bucket == "" && scanAzureContainer == "" {
		return fmt.Errorf("must specify a target, --s3-bucket, or --azure-container")
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	enumerator, err := createEnumerator(ctx, args)
	if err != nil {
		return fmt.Errorf("creating enumerator: %w", err)
	}

	dicts, err := loadDictionaries(scanDictionaries, scanInclude, scanExclude, scanKeywords)
	if err != nil {
		return err
	}
	mode, err := matcher.ParseMode(scanMode)
	if err != nil {
		return err
	}

	ds, err := datastore.Open(scanDatastore, datastore.Options{StoreBlobs: scanStoreBlobs, StoreURL: scanStoreURL})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	core, err := newScanCore(ds, dicts, mode, scanContextLines, scanKeywordStore, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	stats, err := scanBlobs(ctx, core, ds, enumerator, scanIncremental)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	printSummary(cmd, scanOutputFormat, "Scan", stats, scanDatastore)
	return outputResults(cmd, scanOutputFormat, ds.Store, core.Dictionaries())
}

// =============================================================================
// HELPERS
// =============================================================================

// scanStats counts what a scan saw.
type scanStats struct {
	Blobs    int
	Skipped  int
	Matches  int
	Findings int
}

func newScanCore(ds *datastore.Datastore, dicts []*types.Dictionary, mode matcher.Mode, contextLines int, persist bool, logger *logging.Logger) (*scanner.Core, error) {
	cfg := scanner.Config{
		Dictionaries: dicts,
		Mode:         mode,
		ContextLines: contextLines,
		Store:        ds.Store,
		Logger:       logger,
	}
	if persist {
		cfg.Keywords = ds.Keywords
	}
	core, err := scanner.NewCore(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating scanner: %w", err)
	}
	return core, nil
}

// scanBlobs runs every blob of e through core. Enumerators may call back
// concurrently, so the shared counters are guarded.
func scanBlobs(ctx context.Context, core *scanner.Core, ds *datastore.Datastore, e enum.Enumerator, incremental bool) (scanStats, error) {
	var (
		mu       sync.Mutex
		stats    scanStats
		findings = make(map[string]bool)
	)

	err := e.Enumerate(ctx, func(b enum.Blob) error {
		if incremental {
			exists, err := ds.Store.BlobExists(b.ID)
			if err != nil {
				return fmt.Errorf("checking blob: %w", err)
			}
			if exists {
				mu.Lock()
				stats.Skipped++
				mu.Unlock()
				return nil
			}
		}

		if ds.BlobStore != nil {
			if _, err := ds.BlobStore.Store(b.Content); err != nil {
				return fmt.Errorf("storing blob content: %w", err)
			}
		}

		matches, err := core.ScanBlob(b.Content, b.ID, b.Provenance)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		stats.Blobs++
		stats.Matches += len(matches)
		for _, m := range matches {
			if !findings[m.FindingID] {
				findings[m.FindingID] = true
				stats.Findings++
			}
		}
		return nil
	})
	return stats, err
}

func createEnumerator(ctx context.Context, args []string) (enum.Enumerator, error) {
	config := enum.Config{
		IncludeHidden:   scanIncludeHidden,
		MaxFileSize:     scanMaxFileSize,
		FollowSymlinks:  false,
		ExtractArchives: scanExtract,
		ExtractLimits:   enum.DefaultExtractLimits,
		Decompress:      scanDecompress,
	}

	var enumerators []enum.Enumerator
	if len(args) > 0 {
		target := args[0]
		if _, err := os.Stat(target); err != nil {
			return nil, fmt.Errorf("target does not exist: %s", target)
		}
		local := config
		local.Root = target
		if scanGit || scanHistory {
			g := enum.NewGitEnumerator(local)
			g.WalkAll = scanHistory
			g.Native = scanNativeGit
			enumerators = append(enumerators, g)
		} else {
			enumerators = append(enumerators, enum.NewFilesystemEnumerator(local))
		}
	}

	if scanS3Bucket != "" {
		s3cfg := enum.S3Config{
			Bucket:   scanS3Bucket,
			Prefix:   scanS3Prefix,
			Region:   scanS3Region,
			Profile:  scanS3Profile,
			Endpoint: scanS3Endpoint,
			Config:   config,
		}
		client, err := enum.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("creating S3 client: %w", err)
		}
		e, err := enum.NewS3Enumerator(client, s3cfg)
		if err != nil {
			return nil, err
		}
		enumerators = append(enumerators, e)
	}

	if scanAzureContainer != "" {
		client, err := enum.NewAzureClient(os.Getenv("AZURE_STORAGE_CONNECTION_STRING"), scanAzureAccount)
		if err != nil {
			return nil, fmt.Errorf("creating Azure client: %w", err)
		}
		e, err := enum.NewAzureEnumerator(client, enum.AzureConfig{
			Container: scanAzureContainer,
			Prefix:    scanAzurePrefix,
			Config:    config,
		})
		if err != nil {
			return nil, err
		}
		enumerators = append(enumerators, e)
	}

	if len(enumerators) == 1 {
		return enumerators[0], nil
	}
	return enum.NewCombinedEnumerator(enumerators...), nil
}

// printSummary reports counts on stderr for machine-readable formats so
// stdout stays pure JSON.
func printSummary(cmd *cobra.Command, format, what string, stats scanStats, location string) {
	out := cmd.OutOrStdout()
	if format == "json" || format == "sarif" {
		out = cmd.ErrOrStderr()
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(out, "%s complete: %d blobs, %d matches, %d findings (%d blobs skipped)\n", what, stats.Blobs, stats.Matches, stats.Findings, stats.Skipped)
	} else {
		fmt.Fprintf(out, "%s complete: %d blobs, %d matches, %d findings\n", what, stats.Blobs, stats.Matches, stats.Findings)
	}
	fmt.Fprintf(out, "Results stored in: %s\n", location)
}

func outputResults(cmd *cobra.Command, format string, s store.Store, dicts []*types.Dictionary) error {
	switch format {
	case "json":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputMatches(cmd, matches)
	case "sarif":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputSARIF(cmd, s, dicts, matches)
	case "human":
		findings, err := s.GetFindings()
		if err != nil {
			return fmt.Errorf("retrieving findings: %w", err)
		}
		return outputFindings(cmd, findings)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func outputMatches(cmd *cobra.Command, matches []*types.Match) error {
	if matches == nil {
		matches = []*types.Match{}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(matches)
}

func outputFindings(cmd *cobra.Command, findings []*types.Finding) error {
	if len(findings) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\nNo findings.\n")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nFindings:\n")
	for i, f := range findings {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s: %q\n", i+1, f.DictionaryID, f.Keyword)
	}
	return nil
}

// blobPath names a blob by its first provenance, falling back to its ID.
func blobPath(s store.Store, cache map[types.BlobID]string, id types.BlobID) string {
	if p, ok := cache[id]; ok {
		return p
	}
	path := id.Hex()
	if provs, err := s.GetProvenance(id); err == nil && len(provs) > 0 && provs[0].Path() != "" {
		path = provs[0].Path()
	}
	cache[id] = path
	return path
}

// outputSARIF outputs matches in SARIF 2.1.0 format
func outputSARIF(cmd *cobra.Command, s store.Store, dicts []*types.Dictionary, matches []*types.Match) error {
	report := sarif.NewReport()
	for _, d := range dicts {
		report.AddRule(d)
	}

	paths := make(map[types.BlobID]string)
	for _, match := range matches {
		report.AddResult(match, blobPath(s, paths, match.BlobID))
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}
