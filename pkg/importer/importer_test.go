package importer

import (
	"testing"
)

func TestSiteFor(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		url     string
		want    string
		counter int
	}{
		{"url host wins", "GitHub", "https://github.com/login", "github.com", 1},
		{"www stripped", "", "http://www.Example.COM:8443/path", "example.com", 1},
		{"credentials stripped", "", "https://user:pw@host.example/x", "host.example", 1},
		{"query only", "", "mail.example?x=1", "mail.example", 1},
		{"name fallback", "  Office Wi-Fi ", "", "Office Wi-Fi", 1},
		{"NFC name", "café", "", "café", 1},
		{"counter fallback", "", "", "imported_item_1", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := 1
			if got := SiteFor(tt.entry, tt.url, &counter); got != tt.want {
				t.Errorf("SiteFor(%q, %q) = %q, want %q", tt.entry, tt.url, got, tt.want)
			}
			if counter != tt.counter {
				t.Errorf("counter = %d, want %d", counter, tt.counter)
			}
		})
	}
}

func TestDeduplicateSites(t *testing.T) {
	records := []*Record{
		{Site: "github.com"},
		{Site: "example.com"},
		{Site: "GitHub.com"},
		{Site: "github.com"},
	}
	DeduplicateSites(records)

	want := []string{"github.com", "example.com", "GitHub.com_1", "github.com_2"}
	for i, r := range records {
		if r.Site != want[i] {
			t.Errorf("record %d site = %q, want %q", i, r.Site, want[i])
		}
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a &amp; b", "a & b"},
		{"&lt;tag&gt;", "<tag>"},
		{"&quot;q&quot; &#39;s&apos;", `"q" 's'`},
		{"&amp;lt;", "&lt;"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := DecodeHTMLEntities(tt.in); got != tt.want {
			t.Errorf("DecodeHTMLEntities(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsEmptyOrWhitespace(t *testing.T) {
	if !IsEmptyOrWhitespace(" \t\n") || !IsEmptyOrWhitespace("") {
		t.Error("whitespace-only strings should be empty")
	}
	if IsEmptyOrWhitespace(" x ") {
		t.Error("non-space content is not empty")
	}
}

func TestGetParser(t *testing.T) {
	for _, name := range ValidSources() {
		p, err := GetParser(Source(name))
		if err != nil {
			t.Fatalf("GetParser(%q) failed: %v", name, err)
		}
		if string(p.Source()) != name {
			t.Errorf("parser source = %q, want %q", p.Source(), name)
		}
	}
	if _, err := GetParser("Bitwarden"); err != nil {
		t.Errorf("source names should be case-insensitive: %v", err)
	}
	if _, err := GetParser("keepass"); err == nil {
		t.Error("expected error for unsupported source")
	}
}
