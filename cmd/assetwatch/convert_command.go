package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"assetwatch/internal/convert"
	"assetwatch/internal/vtf"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var output string
	var infoOnly bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "convert <texture.vtf>",
		Short: "Render a local VTF texture to MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			if !fileExists(source) {
				return fmt.Errorf("texture not found: %s", source)
			}

			if infoOnly {
				data, err := os.ReadFile(source)
				if err != nil {
					return err
				}
				header, err := vtf.ParseHeader(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), convert.Describe(header))
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cfg, verbose)
			if err != nil {
				return err
			}

			target := strings.TrimSpace(output)
			if target == "" {
				target = strings.TrimSuffix(source, filepath.Ext(source)) + ".mp4"
			}

			result, err := convert.New(cfg, logger).Convert(cmd.Context(), source, target)
			if err != nil {
				return fmt.Errorf("convert %s: %w", source, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, convert.Describe(result.Header))
			fmt.Fprintf(out, "Wrote %s (%s, %d frames at %d fps) in %s\n",
				result.Video.Path,
				humanSize(result.Video.Size),
				result.Video.Frames,
				result.Video.FPS,
				result.Duration.Round(time.Millisecond),
			)
			if result.Kept {
				fmt.Fprintf(out, "Frames kept in %s\n", result.WorkDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output MP4 path (default: beside the texture)")
	cmd.Flags().BoolVar(&infoOnly, "info", false, "Print the texture header and exit without converting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
	return cmd
}
