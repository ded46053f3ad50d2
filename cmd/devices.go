package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/scenecast/internal/devices"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  `Enumerates cameras and microphones on this host and prints them as a table.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			enum := devices.NewEnumerator()
			cams, err := enum.ListCameras(ctx)
			if err != nil {
				return fmt.Errorf("failed to list cameras: %w", err)
			}
			mics, err := enum.ListMicrophones(ctx)
			if err != nil {
				return fmt.Errorf("failed to list microphones: %w", err)
			}

			rows := make([][]string, 0, len(cams)+len(mics))
			for _, d := range cams {
				rows = append(rows, []string{"camera", d.ID, d.Label, d.Path})
			}
			for _, d := range mics {
				rows = append(rows, []string{"microphone", d.ID, d.Label, d.Path})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(os.Stderr, "no capture devices found")
				return nil
			}
			fmt.Fprintln(out, renderTable(out, []string{"TYPE", "ID", "LABEL", "PATH"}, rows))
			return nil
		},
	}
}
