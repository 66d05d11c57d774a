package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
)

// Event is the envelope delivered to every sink for one streamed article.
type Event struct {
	QueryID     string          `json:"query_id"`
	QueryName   string          `json:"query_name"`
	Endpoint    string          `json:"endpoint"`
	Key         string          `json:"key"`
	Article     newsapi.Article `json:"article"`
	CollectedAt time.Time       `json:"collected_at"`
}

// NewEvent stamps an article collected by the given saved query.
func NewEvent(queryID, queryName, endpoint, key string, article newsapi.Article) Event {
	return Event{
		QueryID:     queryID,
		QueryName:   queryName,
		Endpoint:    endpoint,
		Key:         key,
		Article:     article,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"query_id": e.QueryID,
		"endpoint": e.Endpoint,
	}
	for k, v := range attrs {
		if v == "" {
			delete(attrs, k)
		}
	}
	return attrs
}
