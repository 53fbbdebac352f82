package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/queueaccess"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reelID>...",
		Short: "Request cancellation of queued or running reels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(access queueaccess.Access, viaDaemon bool) error {
				result, err := api.CancelReelsByID(cmd.Context(), queueActions{access}, args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printCancelResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func printCancelResult(out io.Writer, result api.CancelReelsResult) {
	for _, reel := range result.Reels {
		switch reel.Outcome {
		case api.CancelReelNotFound:
			fmt.Fprintf(out, "Reel %s not found\n", reel.ID)
		case api.CancelReelAlreadyFinished:
			fmt.Fprintf(out, "Reel %s is already %s\n", reel.ID, formatStatusLabel(reel.PriorStatus))
		case api.CancelReelRequested:
			fmt.Fprintf(out, "Reel %s cancel requested (was %s)\n", reel.ID, formatStatusLabel(reel.PriorStatus))
		}
	}
}

// queueActions adapts queue access to the per-reel action helpers.
type queueActions struct {
	access queueaccess.Access
}

func (q queueActions) Describe(ctx context.Context, id string) (*api.Reel, error) {
	return q.access.Describe(ctx, id)
}

func (q queueActions) Retry(ctx context.Context, ids []string) (int64, error) {
	return q.access.Retry(ctx, ids)
}

func (q queueActions) Cancel(ctx context.Context, id string) (bool, error) {
	resp, err := q.access.Cancel(ctx, id)
	if err != nil {
		return false, err
	}
	if resp == nil {
		return false, nil
	}
	return resp.Cancelled, nil
}
