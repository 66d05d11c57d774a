package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
)

func newAPI(t *testing.T, handler func(calls int32, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func titles(t *testing.T, out string) []string {
	t.Helper()
	var got []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var art map[string]any
		if err := json.Unmarshal([]byte(line), &art); err != nil {
			t.Fatalf("decode line %q: %v", line, err)
		}
		title, _ := art["title"].(string)
		got = append(got, title)
	}
	return got
}

func TestTopHeadlinesPrintsJSONLines(t *testing.T) {
	api := newAPI(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/top-headlines" || r.URL.Query().Get("country") != "us" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Basic k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":3,"articles":[{"title":"A"},{"title":"B"},{"title":"C"}]}`))
	})

	out, err := execute(t, "--api-key", "k", "--base-url", api.URL, "top-headlines", "--country", "us", "--limit", "2")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := titles(t, out); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("unexpected titles %v", got)
	}
}

func TestEverythingValidationFailsBeforeRequest(t *testing.T) {
	var hit atomic.Bool
	api := newAPI(t, func(int32, http.ResponseWriter, *http.Request) { hit.Store(true) })

	_, err := execute(t, "--api-key", "k", "--base-url", api.URL, "everything", "--language", "en")
	if !errors.Is(err, newsapi.ErrMissingRequiredParameter) {
		t.Fatalf("expected ErrMissingRequiredParameter, got %v", err)
	}
	if hit.Load() {
		t.Fatalf("no request expected")
	}
}

func TestMissingCredentialNamesVariable(t *testing.T) {
	t.Setenv(newsapi.EnvAPIKeyVar, "")
	_, err := execute(t, "sources")
	if !errors.Is(err, newsapi.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if !strings.Contains(err.Error(), newsapi.EnvAPIKeyVar) {
		t.Fatalf("error should name %s: %v", newsapi.EnvAPIKeyVar, err)
	}
}

func TestSourcesCommand(t *testing.T) {
	api := newAPI(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","sources":[{"id":"bbc-news","name":"BBC News"}]}`))
	})
	out, err := execute(t, "--api-key", "k", "--base-url", api.URL, "sources", "--language", "en")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"id":"bbc-news"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStreamPrintsOnlyNewTitles(t *testing.T) {
	api := newAPI(t, func(calls int32, w http.ResponseWriter, _ *http.Request) {
		if calls == 1 {
			_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[{"title":"A"},{"title":"B"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":3,"articles":[{"title":"A"},{"title":"B"},{"title":"C"}]}`))
	})

	out, err := execute(t, "--api-key", "k", "--base-url", api.URL, "--limit", "3",
		"stream", "--interval", "5ms", "everything", "-q", "go")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := titles(t, out)
	if strings.Join(got, ",") != "A,B,C" {
		t.Fatalf("unexpected titles %v", got)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "1.2.3") {
		t.Fatalf("unexpected version output %q", out)
	}
}
