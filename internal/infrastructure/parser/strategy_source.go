package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/ports"
	"CreatorWatch/internal/scanner"
)

// DefaultStrategy is used for accounts that do not name a scanner.
const DefaultStrategy = "tiktok"

// Timeouts bound individual calls to a source. Zero disables the bound.
type Timeouts struct {
	Request  time.Duration
	Download time.Duration
}

// StrategySource implements ContentSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	fetcher  ports.MediaFetcher
	timeouts Timeouts
	logger   *slog.Logger

	strategyByAccount map[string]string
}

var _ ports.ContentSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with a media fetcher.
func NewStrategySource(reg *scanner.Registry, fetcher ports.MediaFetcher, timeouts Timeouts, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:          reg,
		fetcher:           fetcher,
		timeouts:          timeouts,
		logger:            log,
		strategyByAccount: map[string]string{},
	}
}

// ListItems resolves the account's strategy and lists its items.
func (s *StrategySource) ListItems(ctx context.Context, account domain.Account) ([]domain.ItemRef, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	name := account.Scanner
	if name == "" {
		name = DefaultStrategy
	}
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", account.Handle, err)
	}
	s.strategyByAccount[account.Handle] = name

	ctx, cancel := bound(ctx, s.timeouts.Request)
	defer cancel()

	s.debug("list items", "account", account.Handle, "scanner", name)
	refs, err := strategy.List(ctx, account)
	if err != nil {
		return nil, err
	}

	for i := range refs {
		if refs[i].Account == "" {
			refs[i].Account = account.Handle
		}
	}
	s.debug("account produced items", "account", account.Handle, "count", len(refs))
	return refs, nil
}

// FetchMedia downloads the item's media with the configured fetcher.
func (s *StrategySource) FetchMedia(ctx context.Context, ref domain.ItemRef, destPath string) error {
	if s.fetcher == nil {
		return fmt.Errorf("media fetcher is not configured")
	}
	ctx, cancel := bound(ctx, s.timeouts.Download)
	defer cancel()
	return s.fetcher.Fetch(ctx, ref, destPath)
}

// FetchSecondaryMetadata asks the strategy that listed ref for extra metadata.
// Strategies without that capability report absence.
func (s *StrategySource) FetchSecondaryMetadata(ctx context.Context, ref domain.ItemRef) (string, error) {
	name, ok := s.strategyByAccount[ref.Account]
	if !ok || s.registry == nil {
		return "", nil
	}
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return "", nil
	}
	meta, ok := strategy.(scanner.MetadataStrategy)
	if !ok {
		return "", nil
	}

	ctx, cancel := bound(ctx, s.timeouts.Request)
	defer cancel()
	return meta.SecondaryMetadata(ctx, ref)
}

func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
