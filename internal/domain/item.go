package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Account is a monitored creator identity loaded from configuration.
type Account struct {
	Handle     string
	Scanner    string
	Categories []string
}

// ItemRef is what a listing strategy reports for one discovered item.
type ItemRef struct {
	ID       string
	URL      string
	MediaURL string
	Account  string
}

// Item is a discovered unit of content together with its owning account.
type Item struct {
	Ref     ItemRef
	Account Account
}

// Categories are inherited from the owning account.
func (i Item) Categories() []string {
	return i.Account.Categories
}

// MediaArtifact points to the downloaded payload of an item on local disk.
type MediaArtifact struct {
	Path string
}

// Destination addresses one delivery: a chat and an optional forum topic.
type Destination struct {
	Category string
	ChatID   int64
	ThreadID int
}

// Tagged reports whether delivery is scoped to a topic.
func (d Destination) Tagged() bool {
	return d.ThreadID != 0
}

// DeliveryRecord is the message composed for a single delivery attempt.
type DeliveryRecord struct {
	ItemURL    string
	SoundURL   string
	Categories []string
	Artifact   MediaArtifact
}

// Caption renders the text that accompanies the media.
func (r DeliveryRecord) Caption() string {
	sound := r.SoundURL
	if sound == "" {
		sound = "n/a"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%q\n\n", path.Base(r.Artifact.Path))
	fmt.Fprintf(&b, "Video Link: %s\n\n", r.ItemURL)
	fmt.Fprintf(&b, "Sound Link: %s", sound)
	if len(r.Categories) > 0 {
		fmt.Fprintf(&b, "\n\nCategories: %s", strings.Join(r.Categories, ", "))
	}
	return b.String()
}

// LedgerPolicy decides whether a processed item is recorded as delivered.
type LedgerPolicy string

const (
	// PolicyAlways records the item whatever the per-category outcomes were.
	PolicyAlways LedgerPolicy = "always"
	// PolicyAnySuccess records the item once at least one category succeeded.
	PolicyAnySuccess LedgerPolicy = "any"
	// PolicyAllSuccess records the item only if every category succeeded.
	PolicyAllSuccess LedgerPolicy = "all"
)

// Valid reports whether p is a known policy.
func (p LedgerPolicy) Valid() bool {
	switch p {
	case PolicyAlways, PolicyAnySuccess, PolicyAllSuccess:
		return true
	default:
		return false
	}
}

// ShouldRecord applies the policy to the delivery counts of one item.
func (p LedgerPolicy) ShouldRecord(delivered, failed int) bool {
	if delivered+failed == 0 {
		return true
	}
	switch p {
	case PolicyAnySuccess:
		return delivered > 0
	case PolicyAllSuccess:
		return failed == 0
	default:
		return true
	}
}

// ItemIDFromURL derives the stable item identifier from the last path segment.
func ItemIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	} else {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}
