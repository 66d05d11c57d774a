package newsapi

import "time"

// Observer receives notable events from the request client, paginator and stream.
// Implementations must be safe for concurrent use.
type Observer interface {
	RequestCompleted(endpoint Endpoint, page int, status int, elapsed time.Duration, err error)
	PaginationLimitReached(endpoint Endpoint, page int)
	DuplicateSuppressed(endpoint Endpoint, key string)
	CycleCompleted(endpoint Endpoint, emitted, suppressed int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RequestCompleted(Endpoint, int, int, time.Duration, error) {}
func (NopObserver) PaginationLimitReached(Endpoint, int)                       {}
func (NopObserver) DuplicateSuppressed(Endpoint, string)                       {}
func (NopObserver) CycleCompleted(Endpoint, int, int)                          {}

func ensureObserver(obs Observer) Observer {
	if obs == nil {
		return NopObserver{}
	}
	return obs
}

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) RequestCompleted(e Endpoint, page, status int, elapsed time.Duration, err error) {
	for _, o := range m {
		o.RequestCompleted(e, page, status, elapsed, err)
	}
}

func (m multiObserver) PaginationLimitReached(e Endpoint, page int) {
	for _, o := range m {
		o.PaginationLimitReached(e, page)
	}
}

func (m multiObserver) DuplicateSuppressed(e Endpoint, key string) {
	for _, o := range m {
		o.DuplicateSuppressed(e, key)
	}
}

func (m multiObserver) CycleCompleted(e Endpoint, emitted, suppressed int) {
	for _, o := range m {
		o.CycleCompleted(e, emitted, suppressed)
	}
}

// Logger is the structured logging surface LogObserver writes to.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// LogObserver reports events through a Logger.
type LogObserver struct {
	log Logger
}

// NewLogObserver builds an observer that logs events.
func NewLogObserver(log Logger) *LogObserver {
	return &LogObserver{log: log}
}

func (l *LogObserver) RequestCompleted(e Endpoint, page, status int, elapsed time.Duration, err error) {
	if l == nil || l.log == nil {
		return
	}
	fields := map[string]any{
		"endpoint":   e.Name(),
		"page":       page,
		"status":     status,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if err != nil && !IsPaginationLimit(err) {
		fields["error"] = err.Error()
		l.log.WarnObj("newsapi request failed", "newsapi_request", fields)
		return
	}
	l.log.DebugObj("newsapi request completed", "newsapi_request", fields)
}

func (l *LogObserver) PaginationLimitReached(e Endpoint, page int) {
	if l == nil || l.log == nil {
		return
	}
	l.log.WarnObj("pagination limit reached; plan does not allow deeper pages", "newsapi_pagination", map[string]any{
		"endpoint": e.Name(),
		"page":     page,
	})
}

func (l *LogObserver) DuplicateSuppressed(e Endpoint, key string) {
	if l == nil || l.log == nil {
		return
	}
	l.log.DebugObj("bypassing repeat article", "newsapi_duplicate", map[string]any{
		"endpoint": e.Name(),
		"title":    key,
	})
}

func (l *LogObserver) CycleCompleted(e Endpoint, emitted, suppressed int) {
	if l == nil || l.log == nil {
		return
	}
	l.log.InfoObj("stream cycle completed", "newsapi_cycle", map[string]any{
		"endpoint":   e.Name(),
		"emitted":    emitted,
		"suppressed": suppressed,
	})
}
