package cli

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"github.com/spf13/cobra"
)

type streamOptions struct {
	interval time.Duration
	window   int
}

func newStreamCmd(opts *rootOptions) *cobra.Command {
	so := &streamOptions{}
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Poll a query forever, printing only articles not seen recently",
		Long: `Re-run a query on a fixed interval and print each new article once.

Articles are de-duplicated by title against the most recent --window titles.
Interrupt with Ctrl-C; a fatal API error ends the stream.

Examples:
  newsapi stream top-headlines --country us --interval 5m
  newsapi stream everything -q golang --window 5000`,
	}
	cmd.PersistentFlags().DurationVar(&so.interval, "interval", 0, "pause between polls (default: stream_interval_seconds)")
	cmd.PersistentFlags().IntVar(&so.window, "window", 0, "titles remembered for de-duplication (default: recency_window_size)")

	var th newsapi.TopHeadlinesParams
	top := &cobra.Command{
		Use:  "top-headlines",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, opts, so, func(ctx context.Context, s *newsapi.Stream) (iter.Seq2[newsapi.Article, error], error) {
				return s.TopHeadlines(ctx, th)
			})
		},
	}
	bindTopHeadlinesFlags(top, &th)

	var ev newsapi.EverythingParams
	every := &cobra.Command{
		Use:  "everything",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, opts, so, func(ctx context.Context, s *newsapi.Stream) (iter.Seq2[newsapi.Article, error], error) {
				return s.Everything(ctx, ev)
			})
		},
	}
	bindEverythingFlags(every, &ev)

	cmd.AddCommand(top, every)
	return cmd
}

func runStream(cmd *cobra.Command, opts *rootOptions, so *streamOptions, open func(context.Context, *newsapi.Stream) (iter.Seq2[newsapi.Article, error], error)) error {
	streamOpts := newsapi.StreamOptions{
		Interval:   so.interval,
		WindowSize: so.window,
	}
	if opts.cfg != nil {
		if streamOpts.Interval == 0 {
			streamOpts.Interval = opts.cfg.StreamInterval
		}
		if streamOpts.WindowSize == 0 {
			streamOpts.WindowSize = opts.cfg.RecencyWindowSize
		}
	}

	streamOpts.Observer = newsapi.NewLogObserver(opts.log)

	session, err := opts.session()
	if err != nil {
		return err
	}
	defer session.Close()
	stream := newsapi.NewStream(session, streamOpts)
	defer stream.Close()

	ctx := cmd.Context()
	seq, err := open(ctx, stream)
	if err != nil {
		return err
	}
	err = printAll(cmd.OutOrStdout(), seq, opts.limit)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
