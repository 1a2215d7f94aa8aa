package matcher

import (
	"time"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// DictionaryStat counts the matches attributed to one dictionary.
type DictionaryStat struct {
	DictionaryID string `json:"dictionary_id"`
	Matches      int    `json:"matches"`
}

// ResultSummary provides aggregate statistics for one blob.
type ResultSummary struct {
	Dictionaries        int           `json:"dictionaries"`         // dictionaries loaded
	MatchedDictionaries int           `json:"matched_dictionaries"` // dictionaries with at least one match
	Chunks              int           `json:"chunks"`               // chunks the content was fed in
	Bytes               int           `json:"bytes"`
	Duration            time.Duration `json:"duration"`
}

// MatchResult contains matches and execution statistics.
type MatchResult struct {
	Matches         []*types.Match            `json:"matches"`
	DictionaryStats map[string]DictionaryStat `json:"dictionary_stats"`
	Summary         ResultSummary             `json:"summary"`
}
