// Package cli implements the pantryctl operator commands.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/config"
	"github.com/example/pantrysync/internal/firebase"
	"github.com/example/pantrysync/pkg/database"
)

// StoreOpener opens the document store a command reads from.
type StoreOpener func(ctx context.Context) (database.Store, error)

// RootOptions holds global flags and collaborators shared by all commands.
type RootOptions struct {
	Format string // "json" | "text"

	// OpenStore is used by watch. Nil means the store configured through the
	// environment.
	OpenStore StoreOpener
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for pantryctl.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpenStore == nil {
		opts.OpenStore = openConfiguredStore
	}

	cmd := &cobra.Command{
		Use:   "pantryctl",
		Short: "pantryctl - operator tools for pantrysync",
		Long:  "Inspect the rolling meal-plan window, the client id, and live collections of a pantrysync deployment.",
		// main prints the returned error.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewWindowCommand(opts))
	cmd.AddCommand(NewClientIDCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
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

func openConfiguredStore(ctx context.Context) (database.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreBackend == config.BackendMemory {
		return database.NewMemoryStore(), nil
	}
	clients, err := firebase.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return database.NewFirestoreStoreFromClient(clients.Firestore, zap.NewNop()), nil
}
