package dictionary

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// FilterConfig specifies include and exclude patterns over dictionary IDs.
type FilterConfig struct {
	Include []string // Regex patterns - only matching dictionaries included
	Exclude []string // Regex patterns - matching dictionaries excluded
}

// ParsePatterns splits a comma-separated string into trimmed patterns.
func ParsePatterns(patterns string) []string {
	result := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Filter applies include then exclude patterns to dictionary IDs. An empty
// include list keeps everything.
func Filter(dicts []*types.Dictionary, config FilterConfig) ([]*types.Dictionary, error) {
	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*types.Dictionary, 0, len(dicts))
	for _, d := range dicts {
		if len(include) > 0 && !matchesAny(d.ID, include) {
			continue
		}
		if matchesAny(d.ID, exclude) {
			continue
		}
		result = append(result, d)
	}
	return result, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(id string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}
