// Package cli is the operator command line for the card catalog.
package cli

import (
	"context"
	"fmt"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/spf13/cobra"
)

// Backend is what the commands drive. Connections are opened on first use so
// each command only needs the infrastructure it touches.
type Backend interface {
	Migrate(ctx context.Context) error
	Sync(ctx context.Context, req service.SyncRequest) (*models.SyncReport, error)
	RequestSync(ctx context.Context, req comm.SyncRequest) error
	EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error)
	History(ctx context.Context, limit int) ([]*models.SyncReport, error)
	Close()
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Open   func() (Backend, error)
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand(open func() (Backend, error)) *cobra.Command {
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Operate the card catalog",
		Long:  "Sync cards from the card source, compute embeddings and inspect past sync runs.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "output", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewEmbedCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withBackend opens the backend for the duration of fn.
func withBackend(opts *RootOptions, fn func(b Backend) error) error {
	b, err := opts.Open()
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
