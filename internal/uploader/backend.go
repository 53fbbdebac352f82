package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

const (
	backendLocal = "local"
	backendHTTP  = "http"

	defaultUploadTimeout = 5 * time.Minute
)

// Backend stores a finished reel under objectName and returns the reference
// recorded on the job. Published reports an object an earlier delivery of
// the same stage already stored, so a redelivered upload whose staging copy
// is gone can stamp the reference instead of failing.
type Backend interface {
	Name() string
	Store(ctx context.Context, sourcePath, objectName string) (string, error)
	Published(ctx context.Context, objectName string) (string, bool)
}

func newBackend(cfg *config.Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", backendLocal:
		return &localBackend{outputDir: cfg.Paths.OutputDir}, nil
	case backendHTTP, "supabase":
		timeout := time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = defaultUploadTimeout
		}
		return &httpBackend{
			baseURL:    strings.TrimRight(strings.TrimSpace(cfg.Storage.URL), "/"),
			bucket:     strings.TrimSpace(cfg.Storage.Bucket),
			serviceKey: strings.TrimSpace(cfg.Storage.ServiceKey),
			client:     &http.Client{Timeout: timeout},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// localBackend moves finished reels into the configured output directory.
type localBackend struct {
	outputDir string
}

func (b *localBackend) Name() string { return backendLocal }

// Published reports an object already moved into the output directory. The
// move consumes the staging copy, so this is how a redelivered upload finds
// the result of its own earlier attempt.
func (b *localBackend) Published(_ context.Context, objectName string) (string, bool) {
	if strings.TrimSpace(b.outputDir) == "" {
		return "", false
	}
	target := filepath.Join(b.outputDir, objectName)
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", false
	}
	return target, true
}

func (b *localBackend) Store(ctx context.Context, sourcePath, objectName string) (string, error) {
	if strings.TrimSpace(b.outputDir) == "" {
		return "", services.Wrap(services.ErrConfiguration, "upload", "resolve output dir",
			"Output directory not configured; set paths.output_dir in your reelforge config.toml", nil)
	}
	target := filepath.Join(b.outputDir, objectName)
	if err := moveFile(sourcePath, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "move reel",
			"Failed to move the reel into the output directory", err)
	}
	return target, nil
}

// moveFile renames sourcePath onto targetPath, copying when the rename
// crosses filesystems.
func moveFile(sourcePath, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := os.Rename(sourcePath, targetPath); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if err := copyFileContents(sourcePath, targetPath); err != nil {
				return fmt.Errorf("copy file across devices: %w", err)
			}
			if err := os.Remove(sourcePath); err != nil {
				return fmt.Errorf("remove source after copy: %w", err)
			}
			return nil
		}
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func copyFileContents(sourcePath, targetPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dest, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// httpBackend posts finished reels to a Supabase-style object storage API.
type httpBackend struct {
	baseURL    string
	bucket     string
	serviceKey string
	client     *http.Client
}

func (b *httpBackend) Name() string { return backendHTTP }

// Published always reports false: the HTTP backend never consumes the
// staging copy, so a redelivered upload still has its source and re-posts
// with x-upsert.
func (b *httpBackend) Published(context.Context, string) (string, bool) {
	return "", false
}

func (b *httpBackend) Store(ctx context.Context, sourcePath, objectName string) (string, error) {
	file, err := os.Open(sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "open reel",
			"Assembled reel could not be opened for upload", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "stat reel",
			"Assembled reel could not be inspected for upload", err)
	}

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", b.baseURL, b.bucket, objectName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, file)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "upload", "build request",
			"Storage endpoint could not be constructed; check storage.url", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", "Bearer "+b.serviceKey)
	req.Header.Set("Content-Type", "video/mp4")
	// Retried uploads replace the previous object instead of failing on 409.
	req.Header.Set("x-upsert", "true")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "post reel",
			"Storage upload request failed. Check connectivity and storage.url", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return uploadURL, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", services.Wrap(services.ErrConfiguration, "upload", "post reel",
			fmt.Sprintf("Storage rejected the service key (%d). Check storage.service_key", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return "", services.Wrap(services.ErrTransient, "upload", "post reel",
			fmt.Sprintf("Storage returned %d: %s", resp.StatusCode, readErrorBody(resp.Body)), nil)
	default:
		return "", services.Wrap(services.ErrPermanent, "upload", "post reel",
			fmt.Sprintf("Storage returned %d: %s", resp.StatusCode, readErrorBody(resp.Body)), nil)
	}
}

func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return strings.TrimSpace(string(data))
}
