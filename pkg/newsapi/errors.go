package newsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingRequiredParameter is returned when none of an endpoint's required-one-of parameters is set.
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	// ErrInvalidParameterType is returned when a dynamically supplied parameter has the wrong type.
	ErrInvalidParameterType = errors.New("invalid parameter type")
	// ErrInvalidParameterValue is returned for out-of-range or non-enumerated values.
	ErrInvalidParameterValue = errors.New("invalid parameter value")
	// ErrMutualExclusion is returned when sources is combined with country or category.
	ErrMutualExclusion = errors.New("mutually exclusive parameters")
	// ErrInvalidDateFormat is returned when from/to fail the YYYY-MM-DD shape check.
	ErrInvalidDateFormat = errors.New("invalid date format")
	// ErrRequestTimeout is returned when the session timeout, a per-call timeout or the
	// caller's deadline expires before a response.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrMissingCredential is returned when no API key is available from any source.
	ErrMissingCredential = errors.New("missing api key")
	// ErrClosed is returned when a closed session or stream is used.
	ErrClosed = errors.New("session closed")
)

// StatusPaginationLimit is the upstream status signalling that no further pages are
// accessible on the current plan. Treating 426 this way is an assumption about the
// upstream service, not a documented contract.
const StatusPaginationLimit = http.StatusUpgradeRequired

// ParamError describes a parameter that failed validation.
type ParamError struct {
	Param string
	Value any
	Err   error
	msg   string
}

func newParamError(param string, value any, err error, msg string) *ParamError {
	return &ParamError{Param: param, Value: value, Err: err, msg: msg}
}

func (e *ParamError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.msg)
	}
	if e.Param == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s=%v", e.Err, e.Param, e.Value)
}

func (e *ParamError) Unwrap() error { return e.Err }

// HTTPError is returned for non-2xx upstream responses.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("newsapi status %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("newsapi status %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("newsapi status %d", e.Status)
	}
}

// IsPaginationLimit reports whether the error is the upstream pagination-limit condition.
func (e *HTTPError) IsPaginationLimit() bool {
	return e != nil && e.Status == StatusPaginationLimit
}

// IsPaginationLimit reports whether err wraps the upstream pagination-limit condition.
func IsPaginationLimit(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.IsPaginationLimit()
}

// timeoutError reports an expired deadline, whether set by the session or the caller,
// as ErrRequestTimeout. The result still matches context.DeadlineExceeded.
func timeoutError(op string, err error) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w (%v)", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrRequestTimeout, op, err)
}
