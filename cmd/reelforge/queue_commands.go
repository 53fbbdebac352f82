package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the reel queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued reels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(access queueaccess.Access, viaDaemon bool) error {
				reels, err := access.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"reels": reels})
				}
				out := cmd.OutOrStdout()
				if len(reels) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Stage", "Progress", "Created"},
					buildReelRows(reels),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				if !viaDaemon {
					fmt.Fprintln(out, "(daemon not running; showing stored state)")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove reels from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withQueue(cmd, func(access queueaccess.Access, viaDaemon bool) error {
				var removed int64
				var label string
				var err error
				switch {
				case clearCompleted:
					removed, err = access.ClearCompleted(cmd.Context())
					label = "completed reels"
				case clearFailed:
					removed, err = access.ClearFailed(cmd.Context())
					label = "failed reels"
				default:
					removed, err = access.ClearAll(cmd.Context())
					label = "reels"
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only succeeded and cancelled reels")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed reels")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [reelID...]",
		Short: "Reset failed reels so the daemon picks them up again",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(access queueaccess.Access, viaDaemon bool) error {
				if len(args) == 0 {
					updated, err := access.RetryAll(cmd.Context())
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, map[string]any{"updated": updated})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed reels\n", updated)
					return nil
				}

				result, err := api.RetryFailedReelsByID(cmd.Context(), queueActions{access}, args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printRetryResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func printRetryResult(out io.Writer, result api.RetryReelsResult) {
	for _, reel := range result.Reels {
		switch reel.Outcome {
		case api.RetryReelNotFound:
			fmt.Fprintf(out, "Reel %s not found\n", reel.ID)
		case api.RetryReelNotFailed:
			fmt.Fprintf(out, "Reel %s is not in failed state\n", reel.ID)
		case api.RetryReelUpdated:
			fmt.Fprintf(out, "Reel %s reset for retry\n", reel.ID)
		}
	}
}
