package importer

import (
	"encoding/json"
	"fmt"
)

// BitwardenParser parses Bitwarden JSON export files. Only login items
// (type 1) are imported.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

type bitwardenExport struct {
	Encrypted bool            `json:"encrypted"`
	Items     []bitwardenItem `json:"items"`
}

type bitwardenItem struct {
	Type  int             `json:"type"`
	Name  string          `json:"name"`
	Login *bitwardenLogin `json:"login"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("encrypted Bitwarden exports are not supported; export as unencrypted JSON")
	}

	result := newResult()
	counter := 1

	for i := range export.Items {
		item := &export.Items[i]
		switch item.Type {
		case bitwardenTypeLogin:
		case bitwardenTypeSecureNote:
			result.skip(item.Name, "secure note")
			continue
		case bitwardenTypeCard:
			result.skip(item.Name, "card")
			continue
		case bitwardenTypeIdentity:
			result.skip(item.Name, "identity")
			continue
		default:
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): unsupported item type: %d", i+1, item.Name, item.Type))
			continue
		}

		if item.Login == nil || item.Login.Password == "" {
			result.skip(item.Name, "no password")
			continue
		}

		var url string
		for _, u := range item.Login.URIs {
			if u.URI != "" {
				url = u.URI
				break
			}
		}

		result.Records = append(result.Records, &Record{
			Site:     SiteFor(item.Name, url, &counter),
			Name:     item.Name,
			Username: item.Login.Username,
			Password: item.Login.Password,
		})
	}

	DeduplicateSites(result.Records)
	return result, nil
}
