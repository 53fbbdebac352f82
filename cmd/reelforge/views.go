package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildReelRows(reels []api.Reel) [][]string {
	if len(reels) == 0 {
		return nil
	}
	sorted := api.SortReelsNewestFirst(reels)

	rows := make([][]string, 0, len(sorted))
	for _, reel := range sorted {
		rows = append(rows, []string{
			reel.ID,
			reelTitle(reel),
			formatStatusLabel(reel.Status),
			formatStatusLabel(reel.Stage),
			formatProgress(reel.Progress),
			formatDisplayTime(reel.CreatedAt),
		})
	}
	return rows
}

// reelTitle prefers the generated title and falls back to a prompt excerpt so
// every row has something recognizable.
func reelTitle(reel api.Reel) string {
	if title := strings.TrimSpace(reel.Title); title != "" {
		return title
	}
	if prompt := strings.TrimSpace(reel.Prompt); prompt != "" {
		return truncateText(prompt, 40)
	}
	return "Untitled"
}

func truncateText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatProgress(progress api.Progress) string {
	if progress.Percent <= 0 && strings.TrimSpace(progress.Message) == "" {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", progress.Percent)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}
