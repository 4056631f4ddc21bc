package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"CreatorWatch/internal/domain"
)

func TestHTTPFetcherWritesFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "downloads", "v1.mp4")
	f := NewHTTPFetcher(server.Client())
	if err := f.Fetch(context.Background(), domain.ItemRef{ID: "v1", MediaURL: server.URL + "/v1.mp4"}, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "video-bytes" {
		t.Fatalf("unexpected content: %q", got)
	}
	if _, err := os.Stat(dest + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("part file left behind: %v", err)
	}
}

func TestHTTPFetcherFailureLeavesNoArtifact(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "v1.mp4")
	err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), domain.ItemRef{ID: "v1", MediaURL: server.URL}, dest)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should not exist: %v", err)
	}

	if err := NewHTTPFetcher(nil).Fetch(context.Background(), domain.ItemRef{ID: "v2"}, dest); err == nil {
		t.Fatal("expected error for missing media url")
	}
}

type recordingFetcher struct {
	calls []string
}

func (r *recordingFetcher) Fetch(_ context.Context, ref domain.ItemRef, _ string) error {
	r.calls = append(r.calls, ref.ID)
	return nil
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()

	direct := &recordingFetcher{}
	page := &recordingFetcher{}
	router := Router{Direct: direct, Page: page}

	_ = router.Fetch(context.Background(), domain.ItemRef{ID: "a", MediaURL: "https://cdn/a.mp4"}, "a.mp4")
	_ = router.Fetch(context.Background(), domain.ItemRef{ID: "b", URL: "https://www.tiktok.com/@x/video/b"}, "b.mp4")

	if len(direct.calls) != 1 || direct.calls[0] != "a" {
		t.Fatalf("unexpected direct calls: %v", direct.calls)
	}
	if len(page.calls) != 1 || page.calls[0] != "b" {
		t.Fatalf("unexpected page calls: %v", page.calls)
	}

	if err := (Router{}).Fetch(context.Background(), domain.ItemRef{ID: "c"}, "c.mp4"); err == nil {
		t.Fatal("expected error without page fetcher")
	}
}

func TestYtDlpFetcherMissingBinary(t *testing.T) {
	t.Parallel()

	f := NewYtDlpFetcher(filepath.Join(t.TempDir(), "no-such-yt-dlp"), "")
	err := f.Fetch(context.Background(), domain.ItemRef{ID: "v1", URL: "https://www.tiktok.com/@x/video/v1"}, filepath.Join(t.TempDir(), "v1.mp4"))
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
