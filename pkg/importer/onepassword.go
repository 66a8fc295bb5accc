package importer

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names.
const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColArchived = "Archived"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data.
func (p *OnePasswordParser) Parse(data []byte) (*Result, error) {
	result := newResult()
	counter := 1

	err := csvRows(data, op1ColTitle, false, result, func(get func(string) string) {
		title := get(op1ColTitle)
		password := get(op1ColPassword)

		switch {
		case get(op1ColArchived) == "true":
			result.skip(title, "archived")
			return
		case password == "":
			result.skip(title, "no password")
			return
		}

		result.Records = append(result.Records, &Record{
			Site:     SiteFor(title, get(op1ColWebsite), &counter),
			Name:     title,
			Username: get(op1ColUsername),
			Password: password,
		})
	})
	if err != nil {
		return nil, err
	}

	DeduplicateSites(result.Records)
	return result, nil
}
