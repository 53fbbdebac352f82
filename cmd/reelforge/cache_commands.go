package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reelforge/internal/assetcache"
	"reelforge/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the asset cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show cached scripts and clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openAssetCache(ctx)
			if err != nil {
				return err
			}

			stats := cache.Stats()
			entries := cache.List()
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"stats": stats, "entries": entries})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
			if stats.MaxBytes > 0 {
				fmt.Fprintf(out, "Size:    %s / %s\n", humanBytes(stats.TotalBytes), humanBytes(stats.MaxBytes))
			} else {
				fmt.Fprintf(out, "Size:    %s\n", humanBytes(stats.TotalBytes))
			}
			printCacheEntries(out, entries)
			return nil
		},
	}
}

func printCacheEntries(out io.Writer, entries []assetcache.Summary) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cached assets: none")
		return
	}
	const stampLayout = "2006-01-02 15:04"
	fmt.Fprintln(out, "Cached assets:")
	for _, entry := range entries {
		used := "never"
		if !entry.LastUsedAt.IsZero() {
			used = entry.LastUsedAt.Local().Format(stampLayout)
		}
		fmt.Fprintf(out, "  - %s  %s (last used %s)\n", entry.Key, humanBytes(entry.SizeBytes), used)
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openAssetCache(ctx)
			if err != nil {
				return err
			}

			before := cache.Stats()
			if err := cache.Clear(); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"removed_entries": before.Entries,
					"freed_bytes":     before.TotalBytes,
				})
			}
			if before.Entries == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is already empty")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries (%s)\n", before.Entries, humanBytes(before.TotalBytes))
			return nil
		},
	}
}

// openAssetCache loads the cache from config. The nop logger keeps cache
// bookkeeping out of command output.
func openAssetCache(ctx *commandContext) (*assetcache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	cache, err := assetcache.New(cfg.Cache.Dir, cfg.CacheMaxBytes(), cfg.CacheTTL(), logging.NewNop())
	if err != nil {
		return nil, fmt.Errorf("open asset cache: %w", err)
	}
	return cache, nil
}
