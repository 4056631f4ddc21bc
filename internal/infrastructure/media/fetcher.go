package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/ports"
)

// HTTPFetcher streams a direct media URL to disk.
type HTTPFetcher struct {
	client *http.Client
}

var _ ports.MediaFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher; a nil client gets a long timeout since videos can be large.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &HTTPFetcher{client: client}
}

// Fetch downloads ref.MediaURL into destPath via a ".part" file renamed on success.
func (d *HTTPFetcher) Fetch(ctx context.Context, ref domain.ItemRef, destPath string) error {
	if strings.TrimSpace(ref.MediaURL) == "" {
		return fmt.Errorf("item %s has no media url", ref.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.MediaURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return writeAtomically(destPath, resp.Body)
}

// YtDlpFetcher shells out to the yt-dlp binary, which understands page URLs.
type YtDlpFetcher struct {
	binaryPath  string
	cookiesFile string
}

var _ ports.MediaFetcher = (*YtDlpFetcher)(nil)

// NewYtDlpFetcher uses binaryPath, or "yt-dlp" from PATH when empty. A
// non-empty cookiesFile is forwarded to yt-dlp.
func NewYtDlpFetcher(binaryPath, cookiesFile string) *YtDlpFetcher {
	if strings.TrimSpace(binaryPath) == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlpFetcher{binaryPath: binaryPath, cookiesFile: strings.TrimSpace(cookiesFile)}
}

// Fetch downloads the page URL of ref into destPath.
func (d *YtDlpFetcher) Fetch(ctx context.Context, ref domain.ItemRef, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	// -f b: best pre-merged format; yt-dlp writes a .part file and renames it itself
	args := []string{"-f", "b", "--no-warnings", "--no-playlist", "--force-overwrites", "-o", destPath}
	if d.cookiesFile != "" {
		args = append(args, "--cookies", d.cookiesFile)
	}
	args = append(args, ref.URL)
	cmd := exec.CommandContext(ctx, d.binaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	if info, err := os.Stat(destPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("yt-dlp produced no file at %s", destPath)
	}
	return nil
}

// Router downloads directly when the listing supplied a media URL and falls
// back to the page-aware fetcher otherwise.
type Router struct {
	Direct ports.MediaFetcher
	Page   ports.MediaFetcher
}

var _ ports.MediaFetcher = Router{}

// Fetch dispatches on ref.MediaURL.
func (r Router) Fetch(ctx context.Context, ref domain.ItemRef, destPath string) error {
	if strings.TrimSpace(ref.MediaURL) != "" && r.Direct != nil {
		return r.Direct.Fetch(ctx, ref, destPath)
	}
	if r.Page == nil {
		return errors.New("no page media fetcher configured")
	}
	return r.Page.Fetch(ctx, ref, destPath)
}

func writeAtomically(destPath string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	part := destPath + ".part"
	file, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create media file %s: %w", part, err)
	}

	if _, err := io.Copy(file, src); err != nil {
		_ = file.Close()
		_ = os.Remove(part)
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(part, destPath); err != nil {
		return fmt.Errorf("finalize media file: %w", err)
	}
	return nil
}
