package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoconnector/progressbar"
	"repoconnector/upload"
)

var putCmd = &cobra.Command{
	Use:   "put <coordinate> <source-path>",
	Short: "Upload one artifact and its checksum sidecars by coordinate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := parseCoordinate(args[0])
		if err != nil {
			return err
		}
		sourcePath := args[1]

		ctx, cleanup := withShutdownSignal(cmd.Context())
		defer cleanup()

		conn, err := buildConnector(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		bar := progressbar.New(sourcePath, 0, quiet)
		req := &upload.Request{Coordinates: coord, SourcePath: sourcePath, Listener: bar}

		if err := conn.Put(ctx, []*upload.Request{req}); err != nil {
			return fmt.Errorf("put: %w", err)
		}
		bar.Finish()

		if req.Err != nil {
			return fmt.Errorf("upload failed: %w", req.Err)
		}
		if !quiet {
			fmt.Printf("uploaded %s -> %s\n", sourcePath, args[0])
		}
		return nil
	},
}
