package assetcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"reelforge/internal/queue"
	"reelforge/internal/textutil"
)

// Fingerprint derives the stable cache key material for a prompt and its
// parameters. Whitespace runs and letter case do not affect the result.
func Fingerprint(prompt string, params queue.ReelParams) string {
	canonical := strings.Join([]string{
		strings.ToLower(strings.Join(strings.Fields(prompt), " ")),
		strconv.FormatFloat(params.TargetDuration, 'f', 2, 64),
		strings.ToLower(strings.TrimSpace(params.Voice)),
		strings.ToLower(strings.TrimSpace(params.Style)),
		strings.ToLower(strings.TrimSpace(params.Orientation)),
	}, "\n")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ScriptKey returns the cache key for a reel's script asset.
func ScriptKey(fingerprint string) string {
	return "script-" + strings.ToLower(strings.TrimSpace(fingerprint))
}

// ClipKey returns the cache key for a downloaded provider clip.
func ClipKey(sourceID string) string {
	return "clip-" + textutil.SanitizeToken(sourceID)
}
