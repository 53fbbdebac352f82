package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var duration float64
	var voice string
	var style string
	var orientation string

	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Submit a prompt for reel generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("prompt is required")
			}
			if orientation != "" {
				switch strings.ToLower(strings.TrimSpace(orientation)) {
				case "portrait", "landscape":
				default:
					return fmt.Errorf("orientation must be portrait or landscape, got %q", orientation)
				}
			}

			client, err := ctx.requireClient()
			if err != nil {
				return err
			}
			params := queue.ReelParams{
				TargetDuration: duration,
				Voice:          voice,
				Style:          style,
				Orientation:    orientation,
			}
			resp, err := client.Submit(cmd.Context(), prompt, params)
			if err != nil {
				return wrapAPIError(err, client.BaseURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted reel %s\n", resp.JobID)
			return nil
		},
	}

	cmd.Flags().Float64Var(&duration, "duration", 0, "Target narration length in seconds (default from config)")
	cmd.Flags().StringVar(&voice, "voice", "", "Speech voice (default from config)")
	cmd.Flags().StringVar(&style, "style", "", "Narration style hint passed to the script writer")
	cmd.Flags().StringVar(&orientation, "orientation", "", "Render orientation: portrait or landscape")
	return cmd
}
