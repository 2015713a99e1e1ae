package cli

import (
	"context"
	"fmt"
	"io"

	"screenlist/pkg/browser"
	"screenlist/pkg/logger"
	"screenlist/pkg/pipeline"
	"screenlist/pkg/render"
	"screenlist/pkg/resolver"
	"screenlist/pkg/sites"

	"github.com/spf13/cobra"
)

// runPreset builds the named preset from configuration and runs the pipeline once
func (a *app) runPreset(ctx context.Context, w io.Writer, name string, opts sites.Options) error {
	cfg := a.cfg
	src := cfg.Source(name)

	if opts.MaxPages == 0 {
		opts.MaxPages = src.MaxPages
	}
	if opts.BaseURL == "" {
		opts.BaseURL = src.BaseURL
	}
	if opts.FeedURL == "" {
		opts.FeedURL = src.FeedURL
	}
	if opts.FeedPagePattern == "" {
		opts.FeedPagePattern = src.PagePattern
	}
	if opts.FilePath == "" {
		opts.FilePath = src.File
	}
	opts.MaxWait = cfg.Browser.MaxWait

	client := httpClient(cfg)
	opts.FeedClient = client

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}
	preset, err := sites.Build(name, profiles, opts)
	if err != nil {
		return err
	}

	sessions, err := sessionFactory(cfg, client)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(cfg.Output.Template)
	if err != nil {
		return err
	}

	mirrors, closeMirrors := openMirrors(ctx, cfg.Mirrors)
	defer closeMirrors()

	maxWait := cfg.Browser.MaxWait
	orch := pipeline.NewOrchestrator(pipeline.Config{
		Name:     preset.Name,
		Sessions: sessions,
		Lister:   preset.Lister,
		Parser:   preset.Parser,
		MaxPages: preset.MaxPages,
		Resolver: func(s browser.Session) pipeline.Resolver {
			return resolver.New(s, preset.Resolver, maxWait)
		},
		Store:      cacheStore(cfg, name, mirrors),
		Refresh:    cfg.Cache.Refresh,
		Criteria:   preset.Criteria,
		Renderer:   renderer,
		Metadata:   preset.Metadata,
		OutputDir:  cfg.Output.Dir,
		ReportName: preset.ReportName,
	})

	res, runErr := orch.Run(ctx)
	if res != nil {
		printSummary(w, preset.Name, res)
		printUnresolved(w, res)
	}
	if runErr != nil {
		logger.Error("CLI: run failed", runErr, "preset", preset.Name)
	}

	code := 1
	if res != nil {
		code = res.ExitCode()
	}
	if code != 0 {
		_ = a.teardown(ctx)
		return &ExitError{Code: code}
	}
	return nil
}

func newTVShowsCmd(a *app) *cobra.Command {
	var pages int
	var rating float64

	cmd := &cobra.Command{
		Use:   "tvshows",
		Short: "Lists recent TV episodes from EZTV and reports the shows with their ratings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPreset(cmd.Context(), cmd.OutOrStdout(), sites.TVShowsPreset, sites.Options{
				MaxPages:  pages,
				MinRating: rating,
			})
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 0, "listing pages to read (default 15)")
	cmd.Flags().Float64Var(&rating, "rating", 0, "minimum rating; 0 keeps every rated show")
	return cmd
}

func newRentalsCmd(a *app) *cobra.Command {
	var weeks int
	var rating float64

	cmd := &cobra.Command{
		Use:   "rentals",
		Short: "Reports the film download chart, filtered by weeks on chart and rating.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("weeks") {
				weeks = a.cfg.Filter.MaxWeeks
			}
			if !cmd.Flags().Changed("rating") {
				rating = a.cfg.Filter.MinRating
			}
			return a.runPreset(cmd.Context(), cmd.OutOrStdout(), sites.RentalsPreset, sites.Options{
				MaxWeeks:  weeks,
				MinRating: rating,
			})
		},
	}
	cmd.Flags().IntVar(&weeks, "weeks", 8, "drop films charted longer than this many weeks")
	cmd.Flags().Float64Var(&rating, "rating", 6.0, "minimum rating")
	return cmd
}

func newFeedCmd(a *app) *cobra.Command {
	var feedURL string
	var pages int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Like tvshows, but reads episodes from the EZTV RSS feed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPreset(cmd.Context(), cmd.OutOrStdout(), sites.TVFeedPreset, sites.Options{
				FeedURL:  feedURL,
				MaxPages: pages,
			})
		},
	}
	cmd.Flags().StringVar(&feedURL, "feed-url", "", fmt.Sprintf("feed to read (default %s)", sites.DefaultTVFeedURL))
	cmd.Flags().IntVar(&pages, "pages", 0, "feed pages to read when the feed is paginated")
	return cmd
}

func newFileCmd(a *app) *cobra.Command {
	var profile string
	var rating float64

	cmd := &cobra.Command{
		Use:   "file <titles.txt>",
		Short: "Resolves titles listed one per line in a local file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := sites.Options{ResolverProfile: profile, MinRating: rating}
			if len(args) == 1 {
				opts.FilePath = args[0]
			}
			return a.runPreset(cmd.Context(), cmd.OutOrStdout(), sites.FilePreset, opts)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "imdb-film", "detail profile to resolve titles with")
	cmd.Flags().Float64Var(&rating, "rating", 0, "minimum rating; 0 disables the filter")
	return cmd
}
