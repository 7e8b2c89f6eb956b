package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoconnector/download"
	"repoconnector/progressbar"
)

var getCmd = &cobra.Command{
	Use:   "get <coordinate> <output-path>",
	Short: "Download one artifact by coordinate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := parseCoordinate(args[0])
		if err != nil {
			return err
		}
		outputPath := args[1]

		ctx, cleanup := withShutdownSignal(cmd.Context())
		defer cleanup()

		conn, err := buildConnector(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		bar := progressbar.New(outputPath, 0, quiet)
		req := &download.Request{Coordinates: coord, FinalPath: outputPath, Listener: bar}

		if err := conn.Get(ctx, []*download.Request{req}); err != nil {
			return fmt.Errorf("get: %w", err)
		}
		bar.Finish()

		if req.Err != nil {
			return fmt.Errorf("download failed: %w", req.Err)
		}
		if !quiet {
			fmt.Printf("downloaded %s -> %s\n", args[0], outputPath)
		}
		return nil
	},
}
