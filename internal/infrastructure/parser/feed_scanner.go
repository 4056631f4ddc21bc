package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/scanner"
)

// FeedScanner lists items of an account published as an RSS/Atom feed
// (RSSHub bridges, YouTube channel feeds and the like).
type FeedScanner struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ scanner.Strategy = (*FeedScanner)(nil)

// NewFeedScanner wires gofeed with the shared HTTP client.
func NewFeedScanner(client *http.Client, logger *slog.Logger) *FeedScanner {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FeedScanner{parser: fp, logger: logger}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feed"
}

// List parses the feed at the account handle and keeps feed order.
func (f *FeedScanner) List(ctx context.Context, account domain.Account) ([]domain.ItemRef, error) {
	feed, err := f.parser.ParseURLWithContext(account.Handle, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %v", ErrListing, account.Handle, err)
	}

	refs := make([]domain.ItemRef, 0, len(feed.Items))
	seen := map[string]struct{}{}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		id := feedItemID(item)
		if id == "" {
			f.logger.Debug("skip feed item without link or guid", "account", account.Handle, "title", item.Title)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		ref := domain.ItemRef{ID: id, URL: link, Account: account.Handle}
		if ref.URL == "" {
			ref.URL = item.GUID
		}
		for _, enc := range item.Enclosures {
			if enc != nil && strings.TrimSpace(enc.URL) != "" {
				ref.MediaURL = strings.TrimSpace(enc.URL)
				break
			}
		}
		refs = append(refs, ref)
	}

	f.logger.Debug("feed parsed", "account", account.Handle, "title", feed.Title, "items", len(refs))
	return refs, nil
}

// safeID matches ids usable both as ledger keys and as artifact file names.
var safeID = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`)

// feedItemID picks a stable id for a feed entry: the YouTube video id, then a
// token-like GUID, then the last path segment of a GUID or link that is not
// addressed by its query string. Anything else is hashed.
func feedItemID(item *gofeed.Item) string {
	if id := strings.TrimSpace(youTubeVideoID(item)); safeID.MatchString(id) {
		return id
	}

	guid := strings.TrimSpace(item.GUID)
	link := strings.TrimSpace(item.Link)

	if safeID.MatchString(guid) {
		return guid
	}
	for _, candidate := range []string{guid, link} {
		if id := pathSegmentID(candidate); id != "" {
			return id
		}
	}

	for _, candidate := range []string{guid, link} {
		if candidate != "" {
			sum := sha256.Sum256([]byte(candidate))
			return "feed-" + hex.EncodeToString(sum[:8])
		}
	}
	return ""
}

func youTubeVideoID(item *gofeed.Item) string {
	yt, ok := item.Extensions["yt"]
	if !ok {
		return ""
	}
	for _, ext := range yt["videoId"] {
		if v := strings.TrimSpace(ext.Value); v != "" {
			return v
		}
	}
	return ""
}

// pathSegmentID returns the last path segment of an http(s) URL without a query.
func pathSegmentID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.RawQuery != "" {
		return ""
	}
	id := domain.ItemIDFromURL(raw)
	if !safeID.MatchString(id) {
		return ""
	}
	return id
}
