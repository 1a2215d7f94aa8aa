package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/datastore"
	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/scanner"
	"github.com/praetorian-inc/kwmatch/pkg/serve"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

var (
	serveDictionaries []string
	serveInclude      string
	serveExclude      string
	serveKeywords     []string
	serveMode         string
	serveDatastore    string
	serveWatch        bool
	serveMetricsAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON matching server",
	Long: `Run kwmatch as a long-lived server that accepts requests on stdin
and writes responses to stdout, one JSON object per line.

The keyword set is built once at startup and can be changed at runtime with
add/delete requests, or by editing dictionary files when --watch is set.
The process runs until stdin closes or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveDictionaries, "dictionary", nil, "Dictionary file or directory (repeatable; default builtin)")
	serveCmd.Flags().StringVar(&serveInclude, "include", "", "Include dictionaries whose ID matches a regex (comma-separated)")
	serveCmd.Flags().StringVar(&serveExclude, "exclude", "", "Exclude dictionaries whose ID matches a regex (comma-separated)")
	serveCmd.Flags().StringSliceVar(&serveKeywords, "keyword", nil, "Extra keyword to match (repeatable)")
	serveCmd.Flags().StringVar(&serveMode, "mode", "all", "Default match mode: all, greedy")
	serveCmd.Flags().StringVar(&serveDatastore, "datastore", "", "Datastore directory for results and persistent keywords (default in-memory)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload --dictionary paths when they change on disk")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveWatch && len(serveDictionaries) == 0 {
		return fmt.Errorf("--watch requires at least one --dictionary path")
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	mode, err := matcher.ParseMode(serveMode)
	if err != nil {
		return err
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Changes seen before the core exists queue here.
	changes := make(chan []dictionary.Change, 16)

	var dicts []*types.Dictionary
	if serveWatch {
		watcher, err := dictionary.NewWatcher(dictionary.NewLoader(), logger)
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer watcher.Stop()

		raw, err := watcher.Watch(ctx, serveDictionaries, func(c []dictionary.Change) {
			select {
			case changes <- c:
			case <-ctx.Done():
			}
		})
		if err != nil {
			return fmt.Errorf("watching dictionaries: %w", err)
		}
		if dicts, err = selectDictionaries(raw, serveInclude, serveExclude, serveKeywords); err != nil {
			return err
		}
	} else if dicts, err = loadDictionaries(serveDictionaries, serveInclude, serveExclude, serveKeywords); err != nil {
		return err
	}

	cfg := scanner.Config{
		Dictionaries: dicts,
		Mode:         mode,
		ContextLines: 2,
		Logger:       logger,
	}
	if serveDatastore != "" {
		ds, err := datastore.Open(serveDatastore, datastore.Options{})
		if err != nil {
			return fmt.Errorf("opening datastore: %w", err)
		}
		defer ds.Close()
		cfg.Store = ds.Store
		cfg.Keywords = ds.Keywords
	}

	core, err := scanner.NewCore(cfg)
	if err != nil {
		return err
	}
	defer core.Close()

	if serveWatch {
		go applyChanges(ctx, core, changes, logger)
	}

	opts := []serve.Option{serve.WithLogger(logger)}
	if serveMetricsAddr != "" {
		metrics := serve.NewMetrics()
		opts = append(opts, serve.WithMetrics(metrics))

		httpSrv := &http.Server{
			Addr:              serveMetricsAddr,
			Handler:           serve.MetricsHandler(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", serveMetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
	return srv.Run(ctx)
}

// applyChanges feeds watcher reloads into core, dropping dictionaries the
// --include/--exclude patterns reject.
func applyChanges(ctx context.Context, core *scanner.Core, changes <-chan []dictionary.Change, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-changes:
			var kept []dictionary.Change
			for _, c := range batch {
				if selected(c.DictionaryID) {
					kept = append(kept, c)
				}
			}
			if err := core.ApplyChanges(kept); err != nil {
				logger.Warn("applying dictionary changes", "error", err)
			}
		}
	}
}

func selected(id string) bool {
	if serveInclude == "" && serveExclude == "" {
		return true
	}
	out, err := dictionary.Filter([]*types.Dictionary{{ID: id}}, dictionary.FilterConfig{
		Include: dictionary.ParsePatterns(serveInclude),
		Exclude: dictionary.ParsePatterns(serveExclude),
	})
	return err == nil && len(out) == 1
}
