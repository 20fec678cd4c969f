package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/turboduck/internal/gateway"
)

type searchFlags struct {
	kind        string
	limit       int
	page        int
	region      string
	safeSearch  string
	site        string
	excludeSite string
	freshness   string
	size        string
	color       string
	enrich      string
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Runs one search and prints the JSON response",
		Long: `Runs a single query through the search pipeline. --kind selects the
surface: web, news, images, videos, suggest or mix.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			gw := appInstance.Gateway()
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			var out any
			switch f.kind {
			case "web":
				out, err = gw.Search(ctx, gateway.SearchRequest{
					Query: query, Limit: f.limit, Page: f.page, Region: f.region,
					SafeSearch: f.safeSearch, Site: f.site, ExcludeSite: f.excludeSite, Enrich: f.enrich,
				})
			case "news":
				out, err = gw.News(ctx, gateway.NewsRequest{
					Query: query, Limit: f.limit, Page: f.page, Region: f.region,
					SafeSearch: f.safeSearch, Freshness: f.freshness, Enrich: f.enrich,
				})
			case "images":
				out, err = gw.Images(ctx, gateway.ImagesRequest{
					Query: query, Limit: f.limit, Page: f.page, Region: f.region,
					SafeSearch: f.safeSearch, Size: f.size, Color: f.color,
				})
			case "videos":
				out, err = gw.Videos(ctx, gateway.VideosRequest{
					Query: query, Limit: f.limit, Page: f.page, Region: f.region, SafeSearch: f.safeSearch,
				})
			case "suggest":
				out, err = gw.Suggest(ctx, query, f.region)
			case "mix":
				out, err = gw.Mix(ctx, query, f.limit)
			default:
				return fmt.Errorf("unknown --kind %q", f.kind)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.kind, "kind", "web", "surface: web, news, images, videos, suggest, mix")
	flags.IntVar(&f.limit, "limit", 0, "results per page (0 uses the configured default)")
	flags.IntVar(&f.page, "page", 1, "1-based page number")
	flags.StringVar(&f.region, "region", "", "region such as us-en")
	flags.StringVar(&f.safeSearch, "safesearch", "", "off, moderate or strict")
	flags.StringVar(&f.site, "site", "", "only results from this domain (web)")
	flags.StringVar(&f.excludeSite, "exclude-site", "", "drop results from this domain (web)")
	flags.StringVar(&f.freshness, "freshness", "", "recency window like 7d, 2w, 1m, 1y (news)")
	flags.StringVar(&f.size, "size", "", "Small, Medium, Large or Wallpaper (images)")
	flags.StringVar(&f.color, "color", "", "color filter (images)")
	flags.StringVar(&f.enrich, "enrich", "", "none, meta or content (web, news)")
	return cmd
}
