package cli

import (
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"github.com/spf13/cobra"
)

func bindTopHeadlinesFlags(cmd *cobra.Command, p *newsapi.TopHeadlinesParams) {
	cmd.Flags().StringVarP(&p.Q, "query", "q", "", "keywords or phrase")
	cmd.Flags().StringVar(&p.Sources, "sources", "", "comma-separated source ids (not with --country/--category)")
	cmd.Flags().StringVar(&p.Language, "language", "", "two-letter language code")
	cmd.Flags().StringVar(&p.Country, "country", "", "two-letter country code")
	cmd.Flags().StringVar(&p.Category, "category", "", "business|entertainment|general|health|science|sports|technology")
	cmd.Flags().IntVar(&p.PageSize, "page-size", 0, "results per page, 1-100 (default 20)")
}

func bindEverythingFlags(cmd *cobra.Command, p *newsapi.EverythingParams) {
	cmd.Flags().StringVarP(&p.Q, "query", "q", "", "keywords or phrase")
	cmd.Flags().StringVar(&p.Sources, "sources", "", "comma-separated source ids")
	cmd.Flags().StringVar(&p.Domains, "domains", "", "comma-separated domains to restrict to")
	cmd.Flags().StringVar(&p.ExcludeDomains, "exclude-domains", "", "comma-separated domains to drop")
	cmd.Flags().StringVar(&p.From, "from", "", "oldest article date, YYYY-MM-DD or ISO 8601")
	cmd.Flags().StringVar(&p.To, "to", "", "newest article date, YYYY-MM-DD or ISO 8601")
	cmd.Flags().StringVar(&p.Language, "language", "", "two-letter language code")
	cmd.Flags().StringVar(&p.SortBy, "sort-by", "", "relevancy|popularity|publishedAt")
	cmd.Flags().IntVar(&p.PageSize, "page-size", 0, "results per page, 1-100 (default 20)")
}

func newTopHeadlinesCmd(opts *rootOptions) *cobra.Command {
	var p newsapi.TopHeadlinesParams
	cmd := &cobra.Command{
		Use:     "top-headlines",
		Aliases: []string{"headlines"},
		Short:   "Print live top headlines",
		Long: `Print breaking headlines for a country, category or set of sources.

At least one of --query, --sources, --country, --category or --language is required.

Examples:
  newsapi top-headlines --country in --category sports
  newsapi top-headlines --sources bbc-news,the-verge --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := opts.session()
			if err != nil {
				return err
			}
			defer session.Close()

			seq, err := session.TopHeadlines(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printAll(cmd.OutOrStdout(), seq, opts.limit)
		},
	}
	bindTopHeadlinesFlags(cmd, &p)
	return cmd
}

func newEverythingCmd(opts *rootOptions) *cobra.Command {
	var p newsapi.EverythingParams
	cmd := &cobra.Command{
		Use:   "everything",
		Short: "Search the full article archive",
		Long: `Search every indexed article.

At least one of --query, --sources or --domains is required.

Examples:
  newsapi everything -q "open source" --from 2024-01-01 --sort-by publishedAt
  newsapi everything --domains techcrunch.com --page-size 100 --limit 300`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := opts.session()
			if err != nil {
				return err
			}
			defer session.Close()

			seq, err := session.Everything(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printAll(cmd.OutOrStdout(), seq, opts.limit)
		},
	}
	bindEverythingFlags(cmd, &p)
	return cmd
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	var p newsapi.SourcesParams
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the publishers available to top-headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := opts.session()
			if err != nil {
				return err
			}
			defer session.Close()

			seq, err := session.Sources(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printAll(cmd.OutOrStdout(), seq, opts.limit)
		},
	}
	cmd.Flags().StringVar(&p.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&p.Language, "language", "", "filter by language")
	cmd.Flags().StringVar(&p.Country, "country", "", "filter by country")
	return cmd
}
