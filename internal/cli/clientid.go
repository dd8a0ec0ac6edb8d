package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/pantrysync/internal/clientid"
	"github.com/example/pantrysync/internal/config"
)

// NewClientIDCommand creates the client-id command.
func NewClientIDCommand(rootOpts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:          "client-id",
		Short:        "Print the persisted client id, creating it if needed",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := clientid.Load(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(map[string]string{"clientId": id, "file": file})
			}
			fmt.Fprintln(out, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", config.DefaultClientIDFile, "client id file")
	return cmd
}
