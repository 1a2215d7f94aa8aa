package store

import (
	"errors"
	"fmt"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the databases to merge from (paths or DSNs).
	SourcePaths []string
	// DestPath is the destination database.
	DestPath string
}

// MergeStats tracks merge operation statistics. Counts are records read
// from the sources; records already present in the destination are kept
// once.
type MergeStats struct {
	BlobsMerged        int
	DictionariesMerged int
	MatchesMerged      int
	FindingsMerged     int
	ProvenanceMerged   int
	SourcesProcessed   int
}

// MergePaths combines multiple kwmatch databases into one.
func MergePaths(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	dst, err := New(Config{Path: cfg.DestPath})
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dst.Close()

	stats := &MergeStats{}
	for _, path := range cfg.SourcePaths {
		src, err := New(Config{Path: path})
		if err != nil {
			return stats, fmt.Errorf("opening source database %s: %w", path, err)
		}
		err = mergeFrom(dst, src, stats)
		src.Close()
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", path, err)
		}
	}
	return stats, nil
}

// Merge copies every record of the sources into dst. Deduplication is
// left to the destination's unique keys.
func Merge(dst Store, sources ...Store) (*MergeStats, error) {
	stats := &MergeStats{}
	for _, src := range sources {
		if err := mergeFrom(dst, src, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func mergeFrom(dst, src Store, stats *MergeStats) error {
	dicts, err := src.GetDictionaries()
	if err != nil {
		return fmt.Errorf("reading dictionaries: %w", err)
	}
	for _, d := range dicts {
		if err := dst.AddDictionary(d); err != nil {
			return err
		}
		stats.DictionariesMerged++
	}

	blobs, err := src.GetBlobs()
	if err != nil {
		return fmt.Errorf("reading blobs: %w", err)
	}
	for _, b := range blobs {
		if err := dst.AddBlob(b.ID, b.Size); err != nil {
			return err
		}
		stats.BlobsMerged++

		provs, err := src.GetProvenance(b.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("reading provenance: %w", err)
		}
		for _, p := range provs {
			if err := dst.AddProvenance(b.ID, p); err != nil {
				return err
			}
			stats.ProvenanceMerged++
		}
	}

	matches, err := src.GetAllMatches()
	if err != nil {
		return fmt.Errorf("reading matches: %w", err)
	}
	for _, m := range matches {
		if err := dst.AddMatch(m); err != nil {
			return err
		}
		stats.MatchesMerged++
	}

	findings, err := src.GetFindings()
	if err != nil {
		return fmt.Errorf("reading findings: %w", err)
	}
	for _, f := range findings {
		if err := dst.AddFinding(f); err != nil {
			return err
		}
		stats.FindingsMerged++
	}

	stats.SourcesProcessed++
	return nil
}
