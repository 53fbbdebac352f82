package footage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/assetcache"
	"reelforge/internal/queue"
)

// Downloader fetches one clip rendition to a local path.
type Downloader interface {
	Download(ctx context.Context, link, dest string) error
}

// EnsureLocal guarantees clip bytes exist on disk, refetching through the
// cache when the cached file was evicted or invalidated since selection.
// The returned clip carries the current local path.
func EnsureLocal(ctx context.Context, cache *assetcache.Cache, downloader Downloader, clip queue.FootageClip) (queue.FootageClip, error) {
	if path := strings.TrimSpace(clip.LocalFile); path != "" {
		if _, err := os.Stat(path); err == nil {
			return clip, nil
		}
		// Stale index entries keep returning the vanished path until dropped.
		if err := cache.Invalidate(assetcache.ClipKey(clip.SourceID)); err != nil {
			return queue.FootageClip{}, fmt.Errorf("invalidate clip %s: %w", clip.SourceID, err)
		}
	}
	if strings.TrimSpace(clip.URL) == "" {
		return queue.FootageClip{}, fmt.Errorf("clip %s has no download link", clip.SourceID)
	}
	cached, err := cache.GetOrCreateClip(ctx, clip.SourceID, func(ctx context.Context, dir string) (queue.FootageClip, error) {
		dest := filepath.Join(dir, "clip.mp4")
		if err := downloader.Download(ctx, clip.URL, dest); err != nil {
			return queue.FootageClip{}, err
		}
		fetched := clip
		fetched.LocalFile = dest
		return fetched, nil
	})
	if err != nil {
		return queue.FootageClip{}, fmt.Errorf("refetch clip %s: %w", clip.SourceID, err)
	}
	clip.LocalFile = cached.LocalFile
	return clip, nil
}
