package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/infrastructure/scheduler"
	"CreatorWatch/internal/ports"
)

// Scanner scans a single account.
type Scanner interface {
	Scan(ctx context.Context, account domain.Account) (ScanReport, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// LoopDeps wires the scheduler loop.
type LoopDeps struct {
	Scanner   Scanner
	Accounts  []domain.Account
	Delay     ports.Delay
	Sleep     SleepFunc
	Observers []ports.CycleObserver
	Logger    *slog.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Loop drives cycles over every configured account until cancelled.
type Loop struct {
	scanner   Scanner
	accounts  []domain.Account
	delay     ports.Delay
	sleep     SleepFunc
	observers []ports.CycleObserver
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewLoop returns a loop; accounts are copied and never change afterwards.
func NewLoop(deps LoopDeps) *Loop {
	l := &Loop{
		scanner:   deps.Scanner,
		accounts:  append([]domain.Account(nil), deps.Accounts...),
		delay:     deps.Delay,
		sleep:     deps.Sleep,
		observers: deps.Observers,
		logger:    deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.sleep == nil {
		l.sleep = scheduler.Sleep
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = uuid.NewString
	}
	return l
}

// Run performs the bootstrap cycle, then alternates cycles and waits.
// It returns ctx.Err() once ctx is cancelled and never earlier.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("bootstrap cycle", "accounts", len(l.accounts))
	l.RunCycle(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.RunCycle(ctx)

		wait := l.nextDelay()
		l.logger.Info("sleeping", "delay", wait.String())
		if err := l.sleep(ctx, wait); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("sleep interrupted", "error", err)
		}
	}
}

// RunCycle scans every account once. Failures stay inside the account that
// caused them; a ledger failure ends the cycle early.
func (l *Loop) RunCycle(ctx context.Context) (report domain.CycleReport) {
	report = domain.CycleReport{
		ID:       l.newID(),
		Started:  l.now(),
		Accounts: len(l.accounts),
	}
	logger := l.logger.With("cycle_id", report.ID)

	for _, o := range l.observers {
		o.CycleStarted(ctx, report.ID)
	}
	logger.Info("cycle started", "accounts", len(l.accounts))

	defer func() {
		if r := recover(); r != nil {
			report.Errors++
			report.Aborted = true
			logger.Error("cycle panicked", "panic", fmt.Sprint(r))
		}
		report.Finished = l.now()
		logger.Info("cycle finished",
			"scanned", report.Scanned,
			"new", report.New,
			"delivered", report.Delivered,
			"failed", report.Failed,
			"recorded", report.Recorded,
			"errors", report.Errors,
			"aborted", report.Aborted,
			"duration", report.Duration().String(),
		)
		for _, o := range l.observers {
			o.CycleFinished(ctx, report)
		}
	}()

	for _, account := range l.accounts {
		if ctx.Err() != nil {
			logger.Info("cycle cancelled")
			return report
		}

		scan, err := l.scanSafely(ctx, account)
		report.Scanned++
		report.New += scan.New
		report.Delivered += scan.Delivered
		report.Failed += scan.Failed
		report.Recorded += scan.Recorded
		report.Errors += scan.Errors

		switch {
		case err == nil:
		case errors.Is(err, ErrLedger):
			report.Errors++
			report.Aborted = true
			logger.Error("ledger failure, ending cycle", "account", account.Handle, "error", err)
			return report
		case ctx.Err() != nil:
			return report
		default:
			report.Errors++
			logger.Warn("account scan failed", "account", account.Handle, "error", err)
		}
	}
	return report
}

func (l *Loop) scanSafely(ctx context.Context, account domain.Account) (report ScanReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scanning %s: %v", account.Handle, r)
		}
	}()
	return l.scanner.Scan(ctx, account)
}

func (l *Loop) nextDelay() time.Duration {
	if l.delay == nil {
		return scheduler.DefaultInterval
	}
	return l.delay.Next(l.now())
}
