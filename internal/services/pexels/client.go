package pexels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Video represents a single Pexels video search match.
type Video struct {
	ID       int64        `json:"id"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	URL      string       `json:"url"`
	Duration float64      `json:"duration"`
	Image    string       `json:"image"`
	User     Videographer `json:"user"`
	Files    []VideoFile  `json:"video_files"`
}

// VideoFile is one downloadable rendition of a video.
type VideoFile struct {
	ID       int64   `json:"id"`
	Quality  string  `json:"quality"`
	FileType string  `json:"file_type"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Link     string  `json:"link"`
}

// Videographer credits the account that published a video.
type Videographer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Response models the Pexels paginated video search response.
type Response struct {
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	TotalResults int     `json:"total_results"`
	Videos       []Video `json:"videos"`
}

// SearchOptions contains optional parameters for a video search.
type SearchOptions struct {
	Orientation string
	Size        string
	PerPage     int
	MinDuration int // in seconds
}

// Searcher defines the Pexels operations used by footage selection.
type Searcher interface {
	SearchVideos(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	Download(ctx context.Context, link, dest string) error
}

// Client provides access to the Pexels video API.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	downloadClient *http.Client
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client used for searches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDownloadHTTPClient overrides the HTTP client used for clip downloads.
func WithDownloadHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.downloadClient = client
		}
	}
}

// New creates a Pexels client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("pexels api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("pexels base url required")
	}
	client := &Client{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		downloadClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchVideos performs a Pexels video search with optional filters.
func (c *Client) SearchVideos(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + "/videos/search")
	if err != nil {
		return nil, fmt.Errorf("parse pexels url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	if orientation := strings.TrimSpace(opts.Orientation); orientation != "" {
		params.Set("orientation", orientation)
	}
	if size := strings.TrimSpace(opts.Size); size != "" {
		params.Set("size", size)
	}
	if opts.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	if opts.MinDuration > 0 {
		params.Set("min_duration", strconv.Itoa(opts.MinDuration))
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// Pexels expects the raw key in the Authorization header, no Bearer prefix.
	req.Header.Set("Authorization", c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels search returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode pexels response: %w", err)
	}
	return &payload, nil
}

// SourceID renders the provider-qualified identifier used to key caches and
// assembly plans.
func SourceID(id int64) string {
	return fmt.Sprintf("pexels-%d", id)
}

// BestFile picks the rendition to download: the first file labelled md, else
// the tallest file no taller than 1080, else the first file listed.
func (v Video) BestFile() (VideoFile, bool) {
	if len(v.Files) == 0 {
		return VideoFile{}, false
	}
	for _, file := range v.Files {
		if strings.EqualFold(strings.TrimSpace(file.Quality), "md") {
			return file, true
		}
	}
	best := -1
	for i, file := range v.Files {
		if file.Height > 1080 {
			continue
		}
		if best < 0 || file.Height > v.Files[best].Height {
			best = i
		}
	}
	if best >= 0 {
		return v.Files[best], true
	}
	return v.Files[0], true
}

// Download streams a clip rendition to dest, replacing any existing file.
// Download links point at the Pexels CDN, so no API key is attached.
func (c *Client) Download(ctx context.Context, link, dest string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return errors.New("download link must not be empty")
	}
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return errors.New("download destination must not be empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", time.Since(requestStart), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pexels download returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write clip: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod clip: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync clip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close clip: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("finalize clip: %w", err)
	}
	cleanup = false
	return nil
}
