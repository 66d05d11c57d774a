package newsapi

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// EnvAPIKeyVar names the environment variable consulted when no key is passed explicitly.
const EnvAPIKeyVar = "NEWSAPI_KEY"

// EnvAPIKey returns the API key from the environment.
func EnvAPIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKeyVar))
	if key == "" {
		return "", fmt.Errorf("%w: the %s environment variable is not set, it should contain the API key (create one at https://newsapi.org)", ErrMissingCredential, EnvAPIKeyVar)
	}
	return key, nil
}

// KeyAuth carries the API key. The upstream service reads it from a Basic-style
// Authorization header, unencoded.
type KeyAuth struct {
	key string
}

// NewKeyAuth wraps an API key.
func NewKeyAuth(key string) (KeyAuth, error) {
	if key == "" {
		return KeyAuth{}, fmt.Errorf("%w: empty api key", ErrMissingCredential)
	}
	return KeyAuth{key: key}, nil
}

// KeyAuthFromURL extracts the apiKey query parameter. ok is false when it is absent.
func KeyAuthFromURL(u *url.URL) (KeyAuth, bool) {
	if u == nil {
		return KeyAuth{}, false
	}
	key := u.Query().Get("apiKey")
	if key == "" {
		return KeyAuth{}, false
	}
	return KeyAuth{key: key}, true
}

// DecodeKeyAuth parses an Authorization header of the form "Basic <key>".
func DecodeKeyAuth(header string) (KeyAuth, error) {
	scheme, key, ok := strings.Cut(header, " ")
	if !ok {
		return KeyAuth{}, errors.New("could not parse authorization header")
	}
	if !strings.EqualFold(scheme, "basic") {
		return KeyAuth{}, fmt.Errorf("unknown authorization method %s", scheme)
	}
	return NewKeyAuth(key)
}

// Key returns the raw API key.
func (a KeyAuth) Key() string { return a.key }

// Encode returns the Authorization header value. The key is not base64 encoded.
func (a KeyAuth) Encode() string { return "Basic " + a.key }

// String hides the key so credentials never end up in logs.
func (a KeyAuth) String() string {
	if len(a.key) <= 4 {
		return "KeyAuth(****)"
	}
	return "KeyAuth(****" + a.key[len(a.key)-4:] + ")"
}
