// Package cli implements the newsapi command line client.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-newsapi/internal/config"
	"github.com/samvad-hq/samvad-newsapi/internal/logger"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

type rootOptions struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	verbose bool
	limit   int

	cfg *config.Config
	log logger.Logger
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "newsapi",
		Short: "Query newsapi.org from the command line",
		Long: `newsapi queries the newsapi.org REST API and prints every article as one JSON line.

Paginated results are followed lazily: the next page is requested only when the
previous one has been printed, and --limit stops paging early.

Example usage:
  newsapi top-headlines --country us             # US headlines, all pages
  newsapi everything -q bitcoin --sort-by popularity --limit 50
  newsapi sources --language en
  newsapi stream top-headlines --category technology --interval 2m`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init()
		},
	}

	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "API key (default: NEWSAPI_KEY)")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "API base URL (default: newsapi_base_url or https://newsapi.org)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (0 uses request_timeout_seconds)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")
	root.PersistentFlags().IntVar(&opts.limit, "limit", 0, "stop after this many records (0 = no limit)")

	root.AddCommand(
		newTopHeadlinesCmd(opts),
		newEverythingCmd(opts),
		newSourcesCmd(opts),
		newStreamCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	} else if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.cfg = cfg
	o.log = log
	return nil
}

func (o *rootOptions) sessionOptions() newsapi.Options {
	opts := newsapi.Options{
		APIKey:   strings.TrimSpace(o.apiKey),
		BaseURL:  strings.TrimSpace(o.baseURL),
		Timeout:  o.timeout,
		Observer: newsapi.NewLogObserver(o.log),
	}
	if o.cfg != nil {
		if opts.APIKey == "" {
			opts.APIKey = o.cfg.APIKey
		}
		if opts.BaseURL == "" {
			opts.BaseURL = o.cfg.BaseURL
		}
		if opts.Timeout == 0 {
			opts.Timeout = o.cfg.RequestTimeout
		}
		opts.RequestsPerSecond = o.cfg.RequestsPerSecond
	}
	return opts
}

func (o *rootOptions) session() (*newsapi.Session, error) {
	s, err := newsapi.NewSession(o.sessionOptions())
	if errors.Is(err, newsapi.ErrMissingCredential) {
		return nil, fmt.Errorf("%w (pass --api-key or set %s)", err, newsapi.EnvAPIKeyVar)
	}
	return s, err
}

// printAll writes each record as one JSON line, stopping after limit records when limit > 0.
func printAll[T any](w io.Writer, seq iter.Seq2[T, error], limit int) error {
	enc := json.NewEncoder(w)
	n := 0
	for item, err := range seq {
		if err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		n++
		if limit > 0 && n >= limit {
			return nil
		}
	}
	return nil
}
