package newsapi

// Endpoint is one of the fixed upstream paths.
type Endpoint string

const (
	EndpointTopHeadlines Endpoint = "/v2/top-headlines"
	EndpointEverything   Endpoint = "/v2/everything"
	EndpointSources      Endpoint = "/v2/sources"
)

// Name returns the short endpoint name used in logs and metrics.
func (e Endpoint) Name() string {
	switch e {
	case EndpointTopHeadlines:
		return "top-headlines"
	case EndpointEverything:
		return "everything"
	case EndpointSources:
		return "sources"
	default:
		return string(e)
	}
}

// Article is an upstream article record, passed through as decoded JSON.
type Article map[string]any

// Title returns the article title, the identity used for duplicate suppression.
func (a Article) Title() string { return a.str("title") }

// URL returns the article link.
func (a Article) URL() string { return a.str("url") }

func (a Article) str(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Source is an upstream publisher record, passed through as decoded JSON.
type Source map[string]any

// ID returns the source identifier.
func (s Source) ID() string {
	if v, ok := s["id"].(string); ok {
		return v
	}
	return ""
}

// Page is the result of one upstream call.
type Page[T any] struct {
	Items        []T
	TotalResults int
}

type articlesResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

type sourcesResponse struct {
	Status  string   `json:"status"`
	Sources []Source `json:"sources"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
