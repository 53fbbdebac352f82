package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/apiclient"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var jobID string
	var component string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.requireClient()
			if err != nil {
				return err
			}

			req := apiclient.LogsRequest{
				Tail:      true,
				Limit:     lines,
				JobID:     strings.TrimSpace(jobID),
				Component: strings.TrimSpace(component),
			}
			if req.Limit <= 0 {
				req.Limit = 200
			}

			printed := false
			for {
				resp, err := client.Logs(cmd.Context(), req)
				if err != nil {
					return wrapAPIError(err, client.BaseURL())
				}
				if ctx.jsonOutput() {
					if len(resp.Events) > 0 || !follow {
						if err := writeJSON(cmd, resp); err != nil {
							return err
						}
					}
					printed = printed || len(resp.Events) > 0
				} else {
					for _, evt := range resp.Events {
						fmt.Fprintln(cmd.OutOrStdout(), formatLogEvent(evt))
						printed = true
					}
				}
				if !follow {
					if !printed && !ctx.jsonOutput() {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				req.Since = resp.Next
				req.Limit = 200
				req.Tail = false
				req.Follow = true
				select {
				case <-cmd.Context().Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent entries to show first")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show entries for this reel ID")
	cmd.Flags().StringVar(&component, "component", "", "Only show entries from this component")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	ts := strings.TrimSpace(evt.Timestamp)
	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		ts = parsed.Local().Format("2006-01-02 15:04:05")
	}
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := composeSubject(evt.JobID, evt.Stage); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	builder := strings.Builder{}
	builder.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(detail.Label)
		builder.WriteString(": ")
		builder.WriteString(detail.Value)
	}
	return builder.String()
}

func composeSubject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	switch {
	case jobID != "" && stage != "":
		return fmt.Sprintf("reel %s (%s)", jobID, stage)
	case jobID != "":
		return "reel " + jobID
	default:
		return stage
	}
}
