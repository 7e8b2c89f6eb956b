package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoconnector/download"
	"repoconnector/internal"
)

var existsCmd = &cobra.Command{
	Use:   "exists <coordinate>",
	Short: "Check whether an artifact exists, without transferring it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := parseCoordinate(args[0])
		if err != nil {
			return err
		}

		ctx, cleanup := withShutdownSignal(cmd.Context())
		defer cleanup()

		conn, err := buildConnector(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &download.Request{Coordinates: coord, ExistenceOnly: true}
		if err := conn.Get(ctx, []*download.Request{req}); err != nil {
			return fmt.Errorf("exists: %w", err)
		}

		if req.Err != nil {
			if internal.KindOf(req.Err) == internal.ErrNotFound {
				fmt.Printf("%s: does not exist\n", args[0])
				return nil
			}
			return fmt.Errorf("exists check failed: %w", req.Err)
		}
		fmt.Printf("%s: exists\n", args[0])
		return nil
	},
}
