package importer

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names.
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColName     = "name"

	// LastPass marks secure notes with this URL.
	lpSecureNoteURL = "http://sn"
)

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	result := newResult()
	counter := 1

	err := csvRows(data, lpColName, true, result, func(get func(string) string) {
		value := func(col string) string { return DecodeHTMLEntities(get(col)) }

		name := value(lpColName)
		url := value(lpColURL)
		password := value(lpColPassword)

		switch {
		case url == lpSecureNoteURL:
			result.skip(name, "secure note")
			return
		case password == "":
			result.skip(name, "no password")
			return
		}

		result.Records = append(result.Records, &Record{
			Site:     SiteFor(name, url, &counter),
			Name:     name,
			Username: value(lpColUsername),
			Password: password,
		})
	})
	if err != nil {
		return nil, err
	}

	DeduplicateSites(result.Records)
	return result, nil
}
