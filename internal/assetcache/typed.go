package assetcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"reelforge/internal/queue"
)

// GetOrCreateScript caches narration plus rendered audio under the reel
// fingerprint. The producer writes the audio into dir; file references are
// stored relative to the entry and returned as absolute paths.
func (c *Cache) GetOrCreateScript(ctx context.Context, fingerprint string, produce func(ctx context.Context, dir string) (queue.ScriptAsset, error)) (queue.ScriptAsset, error) {
	asset, err := c.GetOrCreate(ctx, ScriptKey(fingerprint), func(ctx context.Context, dir string) ([]byte, error) {
		script, err := produce(ctx, dir)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(script.Narration) == "" {
			return nil, errors.New("assetcache: script asset missing narration")
		}
		script.AudioFile = relativeTo(dir, script.AudioFile)
		return json.Marshal(script)
	})
	if err != nil {
		return queue.ScriptAsset{}, err
	}
	var script queue.ScriptAsset
	if err := json.Unmarshal(asset.Payload, &script); err != nil {
		return queue.ScriptAsset{}, fmt.Errorf("assetcache: decode script payload: %w", err)
	}
	script.AudioFile = rebase(asset.Dir, script.AudioFile)
	return script, nil
}

// GetOrCreateClip caches one downloaded rendition keyed by the provider's
// source id. The producer writes the clip bytes into dir; LocalFile is stored
// relative to the entry and returned as an absolute path.
func (c *Cache) GetOrCreateClip(ctx context.Context, sourceID string, produce func(ctx context.Context, dir string) (queue.FootageClip, error)) (queue.FootageClip, error) {
	asset, err := c.GetOrCreate(ctx, ClipKey(sourceID), func(ctx context.Context, dir string) ([]byte, error) {
		clip, err := produce(ctx, dir)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(clip.LocalFile) == "" {
			return nil, errors.New("assetcache: clip asset missing local file")
		}
		if strings.TrimSpace(clip.SourceID) == "" {
			clip.SourceID = strings.TrimSpace(sourceID)
		}
		clip.LocalFile = relativeTo(dir, clip.LocalFile)
		return json.Marshal(clip)
	})
	if err != nil {
		return queue.FootageClip{}, err
	}
	var clip queue.FootageClip
	if err := json.Unmarshal(asset.Payload, &clip); err != nil {
		return queue.FootageClip{}, fmt.Errorf("assetcache: decode clip payload: %w", err)
	}
	clip.LocalFile = rebase(asset.Dir, clip.LocalFile)
	return clip, nil
}

// relativeTo rewrites an absolute path under dir to its relative form so the
// stored payload stays valid after the build directory is renamed into place.
func relativeTo(dir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func rebase(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
