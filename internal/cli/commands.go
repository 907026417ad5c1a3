package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/spf13/cobra"
)

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(rootOpts, func(b Backend) error {
				if err := b.Migrate(cmd.Context()); err != nil {
					return err
				}
				return formatter(rootOpts, cmd).Message("schema applied")
			})
		},
	}
}

type syncOptions struct {
	format string
	set    string
	pages  int
	delay  time.Duration
	remote bool
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull cards from the card source",
		Long: `Pull cards from the card source into the catalog.

Without flags a single unfiltered page is fetched. --format pulls cards legal
in a format (default 5 pages) and --set pages through a whole set. With
--remote the run is handed to a sync worker over NATS instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "only cards legal in this format (standard, expanded)")
	cmd.Flags().StringVar(&opts.set, "set", "", "only cards from the named set")
	cmd.Flags().IntVar(&opts.pages, "pages", 0, "number of pages to fetch")
	cmd.Flags().DurationVar(&opts.delay, "delay", time.Second, "pause between page requests of filtered runs")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "publish the request to a sync worker")
	cmd.MarkFlagsMutuallyExclusive("format", "set")
	cmd.MarkFlagsMutuallyExclusive("set", "pages")

	return cmd
}

func runSync(rootOpts *RootOptions, opts *syncOptions, cmd *cobra.Command) error {
	if opts.pages < 0 || opts.pages > service.DefaultSetPageLimit {
		return fmt.Errorf("--pages must be between 1 and %d", service.DefaultSetPageLimit)
	}
	out := formatter(rootOpts, cmd)

	return withBackend(rootOpts, func(b Backend) error {
		if opts.remote {
			req := comm.SyncRequest{Format: opts.format, Set: opts.set, Pages: opts.pages}
			if err := b.RequestSync(cmd.Context(), req); err != nil {
				return err
			}
			return out.Message("sync requested")
		}

		var req service.SyncRequest
		switch {
		case opts.set != "":
			req = service.SetSync(opts.set, opts.delay)
		case opts.format != "":
			req = service.FormatSync(opts.format, opts.pages, opts.delay)
		default:
			req = service.UnfilteredSync(opts.pages)
		}
		req.Trigger = "cli"

		report, err := b.Sync(cmd.Context(), req)
		if report != nil {
			if werr := out.SyncReport(report); werr != nil {
				return werr
			}
		}
		return err
	})
}

func NewEmbedCommand(rootOpts *RootOptions) *cobra.Command {
	var onlyMissing bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute card embeddings for similarity search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(rootOpts, func(b Backend) error {
				report, err := b.EmbedAll(cmd.Context(), onlyMissing)
				if report != nil {
					if werr := formatter(rootOpts, cmd).EmbedReport(report); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&onlyMissing, "only-missing", false, "skip cards that already have an embedding")
	return cmd
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be positive")
			}
			return withBackend(rootOpts, func(b Backend) error {
				reports, err := b.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return formatter(rootOpts, cmd).History(reports)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}
