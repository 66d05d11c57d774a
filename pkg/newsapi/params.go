package newsapi

import (
	"fmt"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	categoryOptions = setOf("business", "entertainment", "general", "health", "science", "sports", "technology")
	languageOptions = setOf("ar", "de", "en", "es", "fr", "he", "it", "nl", "no", "pt", "ru", "se", "ud", "zh")
	countryOptions  = setOf(
		"ae", "ar", "at", "au", "be", "bg", "br", "ca", "ch", "cn", "co", "cu", "cz", "de",
		"eg", "fr", "gb", "gr", "hk", "hu", "id", "ie", "il", "in", "it", "jp", "kr", "lt",
		"lv", "ma", "mx", "my", "ng", "nl", "no", "nz", "ph", "pl", "pt", "ro", "rs", "ru",
		"sa", "se", "sg", "si", "sk", "th", "tr", "tw", "ua", "us", "ve", "za",
	)
	sortByOptions = setOf("relevancy", "popularity", "publishedAt")
)

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// QueryPayload maps wire parameter names to validated string or int values.
type QueryPayload map[string]any

// Encode renders the payload as query-string values.
func (p QueryPayload) Encode() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// TopHeadlinesParams are the caller-facing top-headlines parameters. Empty means unset.
type TopHeadlinesParams struct {
	Q        string
	Sources  string
	Language string
	Country  string
	Category string
	// PageSize of 0 selects DefaultPageSize.
	PageSize int
}

// EverythingParams are the caller-facing everything parameters. Empty means unset.
type EverythingParams struct {
	Q              string
	Sources        string
	Domains        string
	ExcludeDomains string
	From           string
	To             string
	Language       string
	SortBy         string
	// PageSize of 0 selects DefaultPageSize.
	PageSize int
}

// SourcesParams are the caller-facing sources parameters. Empty means unset.
type SourcesParams struct {
	Category string
	Language string
	Country  string
}

func (p TopHeadlinesParams) pageSize() int { return effectivePageSize(p.PageSize) }
func (p EverythingParams) pageSize() int   { return effectivePageSize(p.PageSize) }

func effectivePageSize(n int) int {
	if n == 0 {
		return DefaultPageSize
	}
	return n
}

// Payload validates the parameters for the given page and builds the wire payload.
func (p TopHeadlinesParams) Payload(page int) (QueryPayload, error) {
	if p.Q == "" && p.Sources == "" && p.Language == "" && p.Country == "" && p.Category == "" {
		return nil, newParamError("", nil, ErrMissingRequiredParameter, "one of q, sources, language, country or category must be provided")
	}
	if p.Sources != "" && (p.Country != "" || p.Category != "") {
		return nil, newParamError("sources", p.Sources, ErrMutualExclusion, "cannot mix country/category with sources")
	}

	payload := QueryPayload{}
	if err := putEnum(payload, "country", p.Country, countryOptions); err != nil {
		return nil, err
	}
	if err := putEnum(payload, "category", p.Category, categoryOptions); err != nil {
		return nil, err
	}
	if err := putEnum(payload, "language", p.Language, languageOptions); err != nil {
		return nil, err
	}
	putString(payload, "sources", p.Sources)
	putString(payload, "q", p.Q)
	if err := putPaging(payload, p.pageSize(), page); err != nil {
		return nil, err
	}
	return payload, nil
}

// Payload validates the parameters for the given page and builds the wire payload.
func (p EverythingParams) Payload(page int) (QueryPayload, error) {
	if p.Q == "" && p.Sources == "" && p.Domains == "" {
		return nil, newParamError("", nil, ErrMissingRequiredParameter, "one of q, sources or domains must be provided")
	}

	payload := QueryPayload{}
	putString(payload, "q", p.Q)
	putString(payload, "sources", p.Sources)
	putString(payload, "domains", p.Domains)
	putString(payload, "excludeDomains", p.ExcludeDomains)
	if err := putDate(payload, "from", p.From); err != nil {
		return nil, err
	}
	if err := putDate(payload, "to", p.To); err != nil {
		return nil, err
	}
	if err := putEnum(payload, "language", p.Language, languageOptions); err != nil {
		return nil, err
	}
	if err := putEnum(payload, "sortBy", p.SortBy, sortByOptions); err != nil {
		return nil, err
	}
	if err := putPaging(payload, p.pageSize(), page); err != nil {
		return nil, err
	}
	return payload, nil
}

// Payload validates the parameters and builds the wire payload.
func (p SourcesParams) Payload() (QueryPayload, error) {
	payload := QueryPayload{}
	if err := putEnum(payload, "category", p.Category, categoryOptions); err != nil {
		return nil, err
	}
	if err := putEnum(payload, "language", p.Language, languageOptions); err != nil {
		return nil, err
	}
	if err := putEnum(payload, "country", p.Country, countryOptions); err != nil {
		return nil, err
	}
	return payload, nil
}

func putString(payload QueryPayload, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

func putEnum(payload QueryPayload, key, value string, options map[string]struct{}) error {
	if value == "" {
		return nil
	}
	if _, ok := options[value]; !ok {
		return newParamError(key, value, ErrInvalidParameterValue, "")
	}
	payload[key] = value
	return nil
}

// putDate only checks the length and the dash positions of YYYY-MM-DD; it does not
// parse the calendar date.
func putDate(payload QueryPayload, key, value string) error {
	if value == "" {
		return nil
	}
	if len(value) < 10 || value[4] != '-' || value[7] != '-' {
		return newParamError(key, value, ErrInvalidDateFormat, key+" should be in the format of YYYY-MM-DD")
	}
	payload[key] = value
	return nil
}

func putPaging(payload QueryPayload, pageSize, page int) error {
	if pageSize < 0 || pageSize > MaxPageSize {
		return newParamError("pageSize", pageSize, ErrInvalidParameterValue, "pageSize should be an int between 0 and 100")
	}
	payload["pageSize"] = pageSize
	if page <= 0 {
		return newParamError("page", page, ErrInvalidParameterValue, "page should be an int greater than 0")
	}
	payload["page"] = page
	return nil
}
