package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/ports"
)

var (
	// ErrFetch marks an item whose media could not be retrieved. It is not
	// recorded and will be retried on the next cycle.
	ErrFetch = errors.New("media fetch failed")
	// ErrLedger marks a ledger that could not be read or persisted. It ends
	// the current cycle.
	ErrLedger = errors.New("ledger unavailable")
)

// ProcessorDeps wires the driven adapters and delivery settings into the processor.
type ProcessorDeps struct {
	Source ports.ContentSource
	Ledger ports.Ledger
	Sink   ports.Sink
	Logger *slog.Logger

	DownloadFolder string
	Extension      string
	ChatID         int64
	Topics         map[string]int
	Policy         domain.LedgerPolicy
}

// Processor runs the fetch, compose, deliver and record steps for one new item.
type Processor struct {
	source ports.ContentSource
	ledger ports.Ledger
	sink   ports.Sink
	logger *slog.Logger

	folder    string
	extension string
	chatID    int64
	topics    map[string]int
	policy    domain.LedgerPolicy
}

// Outcome describes what happened to one processed item.
type Outcome struct {
	ItemID    string
	Artifact  domain.MediaArtifact
	Reused    bool
	Delivered []string
	Failed    []string
	Recorded  bool
}

// NewProcessor constructs the item processor.
func NewProcessor(deps ProcessorDeps) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ext := strings.TrimPrefix(deps.Extension, ".")
	if ext == "" {
		ext = "mp4"
	}
	policy := deps.Policy
	if policy == "" {
		policy = domain.PolicyAlways
	}
	topics := make(map[string]int, len(deps.Topics))
	for k, v := range deps.Topics {
		topics[k] = v
	}

	return &Processor{
		source:    deps.Source,
		ledger:    deps.Ledger,
		sink:      deps.Sink,
		logger:    logger,
		folder:    deps.DownloadFolder,
		extension: ext,
		chatID:    deps.ChatID,
		topics:    topics,
		policy:    policy,
	}
}

// ArtifactPath is where the media of itemID is stored.
func (p *Processor) ArtifactPath(itemID string) string {
	return filepath.Join(p.folder, itemID+"."+p.extension)
}

// Process handles an item the ledger does not know yet.
func (p *Processor) Process(ctx context.Context, item domain.Item) (Outcome, error) {
	id := item.Ref.ID
	if id == "" {
		id = domain.ItemIDFromURL(item.Ref.URL)
	}
	out := Outcome{ItemID: id}
	if id == "" {
		return out, fmt.Errorf("%w: item without id (%s)", ErrFetch, item.Ref.URL)
	}
	item.Ref.ID = id

	artifact, reused, err := p.obtainArtifact(ctx, item.Ref)
	if err != nil {
		return out, err
	}
	out.Artifact = artifact
	out.Reused = reused

	sound, err := p.source.FetchSecondaryMetadata(ctx, item.Ref)
	if err != nil {
		p.logger.Warn("secondary metadata unavailable", "item", id, "error", err)
		sound = ""
	}

	record := domain.DeliveryRecord{
		ItemURL:    item.Ref.URL,
		SoundURL:   sound,
		Categories: item.Categories(),
		Artifact:   artifact,
	}

	for _, category := range item.Categories() {
		dest := p.destination(category)
		if err := p.deliver(ctx, dest, record); err != nil {
			out.Failed = append(out.Failed, category)
			p.logger.Warn("delivery failed", "item", id, "category", category, "thread_id", dest.ThreadID, "error", err)
			continue
		}
		out.Delivered = append(out.Delivered, category)
		p.logger.Info("item delivered", "item", id, "category", category, "tagged", dest.Tagged())
	}

	if !p.policy.ShouldRecord(len(out.Delivered), len(out.Failed)) {
		p.logger.Info("item left unrecorded for retry", "item", id, "policy", p.policy, "failed", out.Failed)
		return out, nil
	}

	if err := p.ledger.Add(ctx, id); err != nil {
		return out, fmt.Errorf("%w: record %s: %w", ErrLedger, id, err)
	}
	out.Recorded = true
	return out, nil
}

func (p *Processor) obtainArtifact(ctx context.Context, ref domain.ItemRef) (domain.MediaArtifact, bool, error) {
	artifact := domain.MediaArtifact{Path: p.ArtifactPath(ref.ID)}

	if nonEmptyFile(artifact.Path) {
		p.logger.Debug("reusing downloaded artifact", "item", ref.ID, "path", artifact.Path)
		return artifact, true, nil
	}

	if p.folder != "" {
		if err := os.MkdirAll(p.folder, 0o755); err != nil {
			return artifact, false, fmt.Errorf("%w: %s: create %s: %v", ErrFetch, ref.ID, p.folder, err)
		}
	}

	if err := p.source.FetchMedia(ctx, ref, artifact.Path); err != nil {
		return artifact, false, fmt.Errorf("%w: %s: %w", ErrFetch, ref.ID, err)
	}
	if !nonEmptyFile(artifact.Path) {
		return artifact, false, fmt.Errorf("%w: %s: no media written to %s", ErrFetch, ref.ID, artifact.Path)
	}

	p.logger.Debug("media fetched", "item", ref.ID, "path", artifact.Path)
	return artifact, false, nil
}

func (p *Processor) destination(category string) domain.Destination {
	return domain.Destination{
		Category: category,
		ChatID:   p.chatID,
		ThreadID: p.topics[category],
	}
}

// deliver turns a panicking sink into an error for that category only.
func (p *Processor) deliver(ctx context.Context, dest domain.Destination, record domain.DeliveryRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return p.sink.Deliver(ctx, dest, record)
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
