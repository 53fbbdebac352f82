package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/queue"
	"reelforge/internal/queueaccess"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reelID>",
		Short: "Display details for a single reel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withQueue(cmd, func(access queueaccess.Access, viaDaemon bool) error {
				reel, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if reel == nil {
					return fmt.Errorf("reel %q not found", id)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, reel)
				}
				printReelDetail(cmd.OutOrStdout(), reel)
				if !viaDaemon {
					fmt.Fprintln(cmd.OutOrStdout(), "(daemon not running; showing stored state)")
				}
				return nil
			})
		},
	}
}

func printReelDetail(out io.Writer, reel *api.Reel) {
	writeDetail := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-14s %s\n", label+":", value)
	}

	writeDetail("ID", reel.ID)
	writeDetail("Title", reel.Title)
	writeDetail("Prompt", reel.Prompt)
	writeDetail("Status", formatStatusLabel(reel.Status))
	writeDetail("Stage", formatStatusLabel(reel.Stage))
	writeDetail("Lane", formatStatusLabel(reel.Lane))
	if reel.Attempt > 0 {
		writeDetail("Attempt", fmt.Sprintf("%d", reel.Attempt))
	}
	writeDetail("Progress", formatProgressDetail(reel.Progress))
	if reel.CancelRequested {
		writeDetail("Cancel", "requested")
	}
	writeDetail("Error", reel.Error)
	writeDetail("Result", reel.ResultRef)
	writeDetail("Params", formatParams(reel.Params))
	writeDetail("Audio", reel.AudioFile)
	writeDetail("Video", reel.AssembledFile)
	writeDetail("Workdir", reel.WorkDir)
	writeDetail("Job log", reel.JobLogPath)
	writeDetail("Created", formatDisplayTime(reel.CreatedAt))
	writeDetail("Updated", formatDisplayTime(reel.UpdatedAt))
}

func formatProgressDetail(progress api.Progress) string {
	message := strings.TrimSpace(progress.Message)
	stage := strings.TrimSpace(progress.Stage)
	switch {
	case message != "" && progress.Percent > 0:
		return fmt.Sprintf("%s (%.0f%%)", message, progress.Percent)
	case message != "":
		return message
	case stage != "":
		return formatStatusLabel(stage)
	default:
		return ""
	}
}

func formatParams(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	params := queue.ParamsFromJSON(string(raw))
	parts := make([]string, 0, 4)
	if params.TargetDuration > 0 {
		parts = append(parts, fmt.Sprintf("duration=%.0fs", params.TargetDuration))
	}
	if params.Voice != "" {
		parts = append(parts, "voice="+params.Voice)
	}
	if params.Style != "" {
		parts = append(parts, "style="+params.Style)
	}
	if params.Orientation != "" {
		parts = append(parts, "orientation="+params.Orientation)
	}
	return strings.Join(parts, " ")
}
