// Package importer reads login exports from other password managers and
// turns them into spm credentials. It supports 1Password CSV, Bitwarden
// JSON and LastPass CSV.
//
// Only login items carrying a password are imported; spm stores one
// username and password per site.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// Record is one credential ready to be saved.
type Record struct {
	// Site is the key the credential is stored under.
	Site string

	// Name is the entry title in the source export.
	Name string

	Username string
	Password string
}

// Result contains the results of a parse.
type Result struct {
	Records  []*Record
	Warnings []string
	Skipped  []SkippedItem
}

// SkippedItem represents an item that was skipped during import.
type SkippedItem struct {
	Name   string
	Reason string
}

// Parser is the interface for export format parsers.
type Parser interface {
	Parse(data []byte) (*Result, error)
	Source() Source
}

func newResult() *Result {
	return &Result{
		Records:  make([]*Record, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}
}

func (r *Result) skip(name, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{Name: name, Reason: reason})
}

// SiteFor picks the site for an entry: the URL's host if there is one,
// else the entry name, else imported_item_N.
func SiteFor(name, url string, counter *int) string {
	if host := extractHostname(url); host != "" {
		return strings.ToLower(host)
	}
	if site := NormalizeValue(name); site != "" {
		return site
	}
	site := fmt.Sprintf("imported_item_%d", *counter)
	*counter++
	return site
}

// DeduplicateSites ensures all sites are unique by appending suffixes (_1, _2, etc.).
func DeduplicateSites(records []*Record) {
	seen := make(map[string]int)

	for _, r := range records {
		base := r.Site
		count := seen[strings.ToLower(base)]
		if count > 0 {
			r.Site = fmt.Sprintf("%s_%d", base, count)
		}
		seen[strings.ToLower(base)] = count + 1
	}
}

// extractHostname extracts the hostname from a URL.
func extractHostname(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)

	// Remove protocol
	if idx := strings.Index(urlStr, "://"); idx != -1 {
		urlStr = urlStr[idx+3:]
	}

	// Remove path, query and fragment
	if idx := strings.IndexAny(urlStr, "/?#"); idx != -1 {
		urlStr = urlStr[:idx]
	}

	// Remove credentials and port
	if idx := strings.LastIndex(urlStr, "@"); idx != -1 {
		urlStr = urlStr[idx+1:]
	}
	if idx := strings.Index(urlStr, ":"); idx != -1 {
		urlStr = urlStr[:idx]
	}

	return strings.TrimPrefix(urlStr, "www.")
}

// DecodeHTMLEntities decodes common HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&apos;", "'")
	// Last, so "&amp;lt;" stays "&lt;"
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// NormalizeValue trims whitespace and normalizes Unicode to NFC.
func NormalizeValue(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace.
func IsEmptyOrWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// csvRows reads a header-based CSV export. fold lowercases column names.
// Rows with the wrong column count become warnings.
func csvRows(data []byte, required string, fold bool, result *Result, fn func(get func(col string) string)) error {
	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		col = strings.TrimSpace(col)
		if fold {
			col = strings.ToLower(col)
		}
		colIndex[col] = i
	}
	if _, ok := colIndex[required]; !ok {
		return fmt.Errorf("missing required column: %s", required)
	}

	rowNum := 1 // header is row 1
	for {
		rowNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}
		if len(row) != len(header) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)", rowNum, len(header), len(row)))
			continue
		}

		fn(func(col string) string {
			if idx, ok := colIndex[col]; ok {
				return strings.TrimSpace(row[idx])
			}
			return ""
		})
	}
	return nil
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch Source(strings.ToLower(string(source))) {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import source: %s", source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}
