package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/ports"
)

// ItemProcessor handles one item the ledger has not seen.
type ItemProcessor interface {
	Process(ctx context.Context, item domain.Item) (Outcome, error)
}

// ScanReport counts what a single account scan did.
type ScanReport struct {
	Account   string
	Listed    int
	New       int
	Delivered int
	Failed    int
	Recorded  int
	Errors    int
}

// AccountScanner lists one account and processes its unseen items in order.
type AccountScanner struct {
	source    ports.ContentSource
	ledger    ports.Ledger
	processor ItemProcessor
	logger    *slog.Logger
}

// NewAccountScanner wires the scanner with its collaborators.
func NewAccountScanner(source ports.ContentSource, ledger ports.Ledger, processor ItemProcessor, logger *slog.Logger) *AccountScanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AccountScanner{source: source, ledger: ledger, processor: processor, logger: logger}
}

// Scan returns the listing error, if any, or an error wrapping ErrLedger when
// the ledger fails. Failures of individual items are logged and counted.
func (s *AccountScanner) Scan(ctx context.Context, account domain.Account) (ScanReport, error) {
	report := ScanReport{Account: account.Handle}

	refs, err := s.source.ListItems(ctx, account)
	if err != nil {
		return report, fmt.Errorf("list %s: %w", account.Handle, err)
	}
	report.Listed = len(refs)
	if len(refs) == 0 {
		s.logger.Info("account has no items", "account", account.Handle)
		return report, nil
	}

	seenThisScan := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if ref.ID == "" {
			ref.ID = domain.ItemIDFromURL(ref.URL)
		}
		if ref.ID == "" {
			s.logger.Warn("skipping item without id", "account", account.Handle, "url", ref.URL)
			continue
		}
		if _, dup := seenThisScan[ref.ID]; dup {
			continue
		}
		seenThisScan[ref.ID] = struct{}{}

		known, err := s.ledger.Contains(ctx, ref.ID)
		if err != nil {
			return report, fmt.Errorf("%w: lookup %s: %w", ErrLedger, ref.ID, err)
		}
		if known {
			continue
		}

		report.New++
		out, err := s.processSafely(ctx, domain.Item{Ref: ref, Account: account})
		report.Delivered += len(out.Delivered)
		report.Failed += len(out.Failed)
		if out.Recorded {
			report.Recorded++
		}
		if err != nil {
			if errors.Is(err, ErrLedger) {
				return report, err
			}
			report.Errors++
			s.logger.Warn("item processing failed", "account", account.Handle, "item", ref.ID, "error", err)
		}
	}

	s.logger.Info("account scanned",
		"account", account.Handle,
		"listed", report.Listed,
		"new", report.New,
		"recorded", report.Recorded,
		"errors", report.Errors,
	)
	return report, nil
}

func (s *AccountScanner) processSafely(ctx context.Context, item domain.Item) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s: %v", item.Ref.ID, r)
		}
	}()
	return s.processor.Process(ctx, item)
}
