// Package newsapi is a client for the newsapi.org v2 REST API: parameter validation,
// authenticated requests, lazy pagination and de-duplicating polling streams.
package newsapi
