// Package cli provides shared utilities for spm commands.
package cli

import (
	"fmt"
	"path"
	"strings"
)

// HasGlob reports whether pattern uses glob syntax.
func HasGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// MatchSites returns the sites matching pattern, in their original order.
// A pattern with glob characters (*?[) must match the whole site name;
// any other pattern matches as a substring. Case is ignored.
func MatchSites(pattern string, sites []string) ([]string, error) {
	lower := strings.ToLower(pattern)
	glob := HasGlob(pattern)
	if glob {
		if _, err := path.Match(lower, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
	}

	var matches []string
	for _, site := range sites {
		name := strings.ToLower(site)
		if glob {
			if ok, _ := path.Match(lower, name); ok {
				matches = append(matches, site)
			}
			continue
		}
		if strings.Contains(name, lower) {
			matches = append(matches, site)
		}
	}
	return matches, nil
}

// MatchAny returns the sites matching at least one pattern, unique and in
// their original order. With no patterns every site matches.
func MatchAny(patterns []string, sites []string) ([]string, error) {
	if len(patterns) == 0 {
		return sites, nil
	}

	hit := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := MatchSites(pattern, sites)
		if err != nil {
			return nil, err
		}
		for _, site := range matches {
			hit[site] = true
		}
	}

	var result []string
	for _, site := range sites {
		if hit[site] {
			result = append(result, site)
		}
	}
	return result, nil
}
