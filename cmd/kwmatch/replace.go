package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/enum"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/scanner"
)

var (
	replaceDictionaries []string
	replaceInclude      string
	replaceExclude      string
	replaceKeywords     []string
	replaceWith         string
	replaceMask         string
	replaceChunkSize    int
	replaceOutput       string
)

var replaceCmd = &cobra.Command{
	Use:   "replace [file]",
	Short: "Rewrite text with keywords replaced",
	Long: `Copy stdin or a file to stdout with every greedy keyword hit replaced.
Compressed files (.gz, .zst) are inflated on the fly. Memory use is bounded
by the longest keyword, not by the input size.

The replacement is --with, else --mask repeated over the keyword, else the
dictionary's own replacement, else the keyword itself.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplace,
}

func init() {
	replaceCmd.Flags().StringSliceVar(&replaceDictionaries, "dictionary", nil, "Dictionary file or directory (repeatable; default builtin)")
	replaceCmd.Flags().StringVar(&replaceInclude, "include", "", "Include dictionaries whose ID matches a regex (comma-separated)")
	replaceCmd.Flags().StringVar(&replaceExclude, "exclude", "", "Exclude dictionaries whose ID matches a regex (comma-separated)")
	replaceCmd.Flags().StringSliceVar(&replaceKeywords, "keyword", nil, "Extra keyword to replace (repeatable)")
	replaceCmd.Flags().StringVar(&replaceWith, "with", "", "Replace every keyword with this text")
	replaceCmd.Flags().StringVar(&replaceMask, "mask", "", "Replace each keyword byte with this character")
	replaceCmd.Flags().IntVar(&replaceChunkSize, "chunk-size", 64*1024, "Read size in bytes")
	replaceCmd.Flags().StringVarP(&replaceOutput, "output", "o", "", "Write to a file instead of stdout")
}

func runReplace(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	dicts, err := loadDictionaries(replaceDictionaries, replaceInclude, replaceExclude, replaceKeywords)
	if err != nil {
		return err
	}
	core, err := scanner.NewCore(scanner.Config{Dictionaries: dicts, Logger: logger})
	if err != nil {
		return err
	}
	defer core.Close()

	var with *string
	if cmd.Flags().Changed("with") {
		with = &replaceWith
	}
	fn, err := core.ReplaceFunc(with, replaceMask)
	if err != nil {
		return err
	}

	in, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	var out io.Writer = cmd.OutOrStdout()
	if replaceOutput != "" {
		f, err := os.Create(replaceOutput)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)

	ctx := commandContext(cmd)
	if _, err := core.Engine().ReplaceReader(ctx, w, in, fn, matcher.WithChunkSize(replaceChunkSize)); err != nil {
		return fmt.Errorf("replacing: %w", err)
	}
	return w.Flush()
}

// openInput opens the named file, inflating it when compressed, or stdin.
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	if !enum.IsCompressed(args[0]) {
		return f, nil
	}
	dec, err := enum.NewDecompressor(filepath.Base(args[0]), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", args[0], err)
	}
	return &stackedCloser{ReadCloser: dec, under: f}, nil
}

// stackedCloser closes a decompressor and the file beneath it.
type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if uerr := s.under.Close(); err == nil {
		err = uerr
	}
	return err
}
