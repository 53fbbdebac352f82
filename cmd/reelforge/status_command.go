package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/config"
	"reelforge/internal/preflight"
	"reelforge/internal/queueaccess"
	"reelforge/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var daemonStatus *api.DaemonStatus
			if client := ctx.apiClient(); client != nil {
				probeCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
				status, statusErr := client.Status(probeCtx)
				cancel()
				if statusErr == nil {
					daemonStatus = status
				}
			}

			if daemonStatus != nil {
				return renderDaemonStatus(cmd, ctx, cfg, daemonStatus)
			}
			return renderOfflineStatus(cmd, ctx, cfg)
		},
	}
}

func renderDaemonStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, status *api.DaemonStatus) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, status)
	}

	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	workflowKind := statusWarn
	workflowDetail := "Idle"
	if status.Workflow.Running {
		workflowKind = statusOK
		workflowDetail = "Processing queue"
	}
	fmt.Fprintln(stdout, renderStatusLine("Workflow", workflowKind, workflowDetail, colorize))
	if lastErr := strings.TrimSpace(status.Workflow.LastError); lastErr != "" {
		fmt.Fprintln(stdout, renderStatusLine("Last error", statusWarn, lastErr, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	if len(status.Workflow.StageHealth) > 0 {
		for _, line := range renderSectionHeader("Stages", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, health := range status.Workflow.StageHealth {
			kind := statusOK
			detail := health.Detail
			if !health.Ready {
				kind = statusWarn
				if detail == "" {
					detail = "not ready"
				}
			}
			fmt.Fprintln(stdout, renderStatusLine(formatStatusLabel(health.Name), kind, detail, colorize))
		}
		fmt.Fprintln(stdout)
	}

	for _, line := range renderSectionHeader("Staging", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, stagingFootprintLine(cfg, colorize))
	fmt.Fprintln(stdout)

	renderQueueSection(stdout, status.Workflow.QueueStats, colorize)
	return nil
}

func renderOfflineStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config) error {
	deps := localDependencyStatuses(cfg)

	var stats map[string]int
	store, err := ctx.storeOpener()()
	if err == nil {
		defer store.Close()
		access := queueaccess.NewStoreAccess(store)
		stats, _ = access.Stats(cmd.Context())
	}

	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{
			"running":      false,
			"queue_stats":  stats,
			"dependencies": deps,
		})
	}

	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "Not running (start with 'reelforge daemon')", colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range dependencyLines(deps, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Staging", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, stagingFootprintLine(cfg, colorize))
	fmt.Fprintln(stdout)

	renderQueueSection(stdout, stats, colorize)
	return nil
}

func renderQueueSection(stdout io.Writer, stats map[string]int, colorize bool) {
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := buildQueueStatusRows(stats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintln(stdout)
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func localDependencyStatuses(cfg *config.Config) []api.DependencyStatus {
	statuses := preflight.CheckSystemDeps(cfg)
	out := make([]api.DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

func stagingFootprintLine(cfg *config.Config, colorize bool) string {
	dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
	if err != nil {
		return renderStatusLine("Staging", statusWarn, err.Error(), colorize)
	}
	if len(dirs) == 0 {
		return renderStatusLine("Staging", statusOK, "Empty", colorize)
	}
	var total int64
	for _, dir := range dirs {
		total += dir.Size
	}
	detail := fmt.Sprintf("%d job directories (%s)", len(dirs), humanBytes(total))
	return renderStatusLine("Staging", statusOK, detail, colorize)
}
