package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/example/pantrysync/pkg/database"
)

type snapshotLine struct {
	Path      string                   `json:"path"`
	Documents []map[string]interface{} `json:"documents"`
}

// NewWatchCommand creates the watch command. It runs until the command's
// context is cancelled or the subscription fails.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "watch <collection-path>",
		Short:        "Print every snapshot of a collection as JSON",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !database.IsCollectionPath(path) {
				return fmt.Errorf("%q is not a collection path", path)
			}
			ctx := cmd.Context()
			store, err := rootOpts.OpenStore(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			p := &printer{w: cmd.OutOrStdout(), path: path}
			failed := make(chan error, 1)
			unsub := store.Subscribe(ctx, path, p.print, func(err error) {
				select {
				case failed <- err:
				default:
				}
			})
			defer unsub()

			select {
			case <-ctx.Done():
				return nil
			case err := <-failed:
				return fmt.Errorf("watch %s: %w", path, err)
			}
		},
	}
}

type printer struct {
	mu   sync.Mutex
	w    io.Writer
	path string
}

func (p *printer) print(docs []database.Document) {
	line := snapshotLine{Path: p.path, Documents: make([]map[string]interface{}, 0, len(docs))}
	for _, d := range docs {
		line.Documents = append(line.Documents, map[string]interface{}{"id": d.ID, "data": d.Data})
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = json.NewEncoder(p.w).Encode(line)
}
