package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/scanner"
)

const (
	tiktokBaseURL = "https://www.tiktok.com"
)

// ErrListing marks a failed attempt to list an account (network, status, markup).
var ErrListing = errors.New("listing failed")

// TikTokScanner reads a profile page and extracts video links.
type TikTokScanner struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var (
	_ scanner.Strategy         = (*TikTokScanner)(nil)
	_ scanner.MetadataStrategy = (*TikTokScanner)(nil)
)

// NewTikTokScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewTikTokScanner(client *http.Client, logger *slog.Logger) *TikTokScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TikTokScanner{client: client, baseURL: tiktokBaseURL, logger: logger}
}

// Name identifies the strategy inside the registry.
func (t *TikTokScanner) Name() string {
	return "tiktok"
}

// List returns the videos visible on the profile page, newest first as the page orders them.
func (t *TikTokScanner) List(ctx context.Context, account domain.Account) ([]domain.ItemRef, error) {
	profileURL := t.profileURL(account.Handle)

	doc, err := t.fetchDocument(ctx, profileURL)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s: %v", ErrListing, account.Handle, err)
	}

	links := t.linksFromScripts(doc, account.Handle)
	if len(links) == 0 {
		links = t.linksFromAnchors(doc)
	}

	refs := make([]domain.ItemRef, 0, len(links))
	seen := map[string]struct{}{}
	for _, link := range links {
		id := domain.ItemIDFromURL(link)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, domain.ItemRef{ID: id, URL: link, Account: account.Handle})
	}

	t.logger.Debug("profile parsed", "account", account.Handle, "items", len(refs))
	return refs, nil
}

// SecondaryMetadata returns the sound link published on the video page.
func (t *TikTokScanner) SecondaryMetadata(ctx context.Context, ref domain.ItemRef) (string, error) {
	doc, err := t.fetchDocument(ctx, ref.URL)
	if err != nil {
		return "", fmt.Errorf("sound link for %s: %w", ref.ID, err)
	}

	href, ok := doc.Find(`a.music-link, a.sound, a[href*="/music/"]`).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", nil
	}
	return t.absolute(href), nil
}

func (t *TikTokScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tiktok returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// linksFromScripts reads the JSON state embedded in the profile page.
func (t *TikTokScanner) linksFromScripts(doc *goquery.Document, handle string) []string {
	fallbackAuthor := strings.TrimPrefix(domain.ItemIDFromURL(handle), "@")

	var links []string
	doc.Find(`script[type="application/json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var state any
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			t.logger.Debug("skip unparsable script", "error", err)
			return
		}
		for _, v := range collectVideos(state) {
			author := v.author
			if author == "" {
				author = fallbackAuthor
			}
			links = append(links, fmt.Sprintf("%s/@%s/video/%s", t.baseURL, author, v.id))
		}
	})
	return links
}

func (t *TikTokScanner) linksFromAnchors(doc *goquery.Document) []string {
	var links []string
	doc.Find(`a[href*="/video/"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, t.absolute(href))
		}
	})
	return links
}

func (t *TikTokScanner) profileURL(handle string) string {
	handle = strings.TrimSpace(handle)
	if strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://") {
		return handle
	}
	return fmt.Sprintf("%s/@%s", t.baseURL, strings.TrimPrefix(handle, "@"))
}

func (t *TikTokScanner) absolute(href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	base, err := url.Parse(t.baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

type videoEntry struct {
	id     string
	author string
}

// videoListPaths are the places profile pages keep the creator's own uploads.
// Other lists in the page state (recommendations, related accounts) are ignored.
var videoListPaths = [][]string{
	{"__DEFAULT_SCOPE__", "webapp.user-detail", "itemList"},
	{"__UNIVERSAL_DATA_FOR_REHYDRATION__", "__DEFAULT_SCOPE__", "webapp.user-detail", "itemList"},
	{"props", "pageProps", "items"},
}

func collectVideos(state any) []videoEntry {
	var out []videoEntry
	for _, path := range videoListPaths {
		if list, ok := lookupPath(state, path).([]any); ok {
			out = append(out, videoEntries(list)...)
		}
	}
	return out
}

func lookupPath(node any, path []string) any {
	for _, key := range path {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = obj[key]
	}
	return node
}

func videoEntries(list []any) []videoEntry {
	entries := make([]videoEntry, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := obj["id"].(string)
		if id == "" {
			continue
		}
		entry := videoEntry{id: id}
		switch author := obj["author"].(type) {
		case map[string]any:
			entry.author, _ = author["uniqueId"].(string)
		case string:
			entry.author = author
		}
		entries = append(entries, entry)
	}
	return entries
}
