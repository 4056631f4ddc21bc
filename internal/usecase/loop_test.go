package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/infrastructure/scheduler"
	"CreatorWatch/internal/ports"
)

type scriptedScanner struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	panics  map[string]bool
	reports map[string]ScanReport
}

func (s *scriptedScanner) Scan(_ context.Context, account domain.Account) (ScanReport, error) {
	s.mu.Lock()
	s.calls = append(s.calls, account.Handle)
	s.mu.Unlock()

	if s.panics[account.Handle] {
		panic("scanner exploded")
	}
	return s.reports[account.Handle], s.errs[account.Handle]
}

func (s *scriptedScanner) scanned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingObserver struct {
	started  []string
	finished []domain.CycleReport
}

func (o *recordingObserver) CycleStarted(_ context.Context, id string) {
	o.started = append(o.started, id)
}

func (o *recordingObserver) CycleFinished(_ context.Context, r domain.CycleReport) {
	o.finished = append(o.finished, r)
}

type fixedDelay time.Duration

func (d fixedDelay) Next(time.Time) time.Duration { return time.Duration(d) }

func accounts(handles ...string) []domain.Account {
	out := make([]domain.Account, 0, len(handles))
	for _, h := range handles {
		out = append(out, domain.Account{Handle: h})
	}
	return out
}

func TestRunCycleIsolatesAccountFailures(t *testing.T) {
	t.Parallel()

	scanner := &scriptedScanner{
		errs:    map[string]error{"A": errors.New("listing failed")},
		panics:  map[string]bool{"B": true},
		reports: map[string]ScanReport{"C": {New: 2, Delivered: 4, Recorded: 2}},
	}
	observer := &recordingObserver{}
	ids := 0
	loop := NewLoop(LoopDeps{
		Scanner:   scanner,
		Accounts:  accounts("A", "B", "C"),
		Observers: []ports.CycleObserver{observer},
		NewID:     func() string { ids++; return fmt.Sprintf("cycle-%d", ids) },
	})

	report := loop.RunCycle(context.Background())

	if got := scanner.scanned(); len(got) != 3 {
		t.Fatalf("every account must be scanned, got %v", got)
	}
	if report.Errors != 2 || report.Aborted || report.New != 2 || report.Recorded != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.ID != "cycle-1" || len(observer.started) != 1 || observer.finished[0].ID != "cycle-1" {
		t.Fatalf("observer not notified: %+v", observer)
	}
}

func TestRunCycleStopsOnLedgerFailure(t *testing.T) {
	t.Parallel()

	scanner := &scriptedScanner{errs: map[string]error{"A": fmt.Errorf("%w: disk full", ErrLedger)}}
	loop := NewLoop(LoopDeps{Scanner: scanner, Accounts: accounts("A", "B")})

	report := loop.RunCycle(context.Background())
	if !report.Aborted {
		t.Fatalf("cycle should be aborted: %+v", report)
	}
	if got := scanner.scanned(); len(got) != 1 {
		t.Fatalf("B must not be scanned after a ledger failure, got %v", got)
	}
}

func TestRunKeepsGoingUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := &scriptedScanner{errs: map[string]error{"A": errors.New("offline")}}
	var sleeps []time.Duration
	loop := NewLoop(LoopDeps{
		Scanner:  scanner,
		Accounts: accounts("A", "B"),
		Delay:    fixedDelay(600 * time.Second),
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	})

	err := loop.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run should end only by cancellation, got %v", err)
	}
	// bootstrap + three steady cycles
	if got := len(scanner.scanned()); got != 8 {
		t.Fatalf("expected 8 account scans, got %d", got)
	}
	for _, d := range sleeps {
		if d != 600*time.Second {
			t.Fatalf("unexpected delay %v", d)
		}
	}
}

func TestRunCycleHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := &scriptedScanner{}
	NewLoop(LoopDeps{Scanner: scanner, Accounts: accounts("A")}).RunCycle(ctx)
	if len(scanner.scanned()) != 0 {
		t.Fatal("no account should be scanned after cancellation")
	}
}

func TestLoopScenarioEndToEnd(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	f.source.items["X"] = []domain.ItemRef{ref("X", "v1"), ref("X", "v2")}
	f.source.listErr["Y"] = errors.New("unreachable")

	loop := NewLoop(LoopDeps{
		Scanner:  newScannerUnderTest(f, domain.PolicyAlways),
		Accounts: []domain.Account{{Handle: "Y", Categories: []string{"news"}}, {Handle: "X", Categories: []string{"news"}}},
	})

	first := loop.RunCycle(context.Background())
	second := loop.RunCycle(context.Background())

	if first.Recorded != 2 || first.Errors != 1 {
		t.Fatalf("unexpected first cycle: %+v", first)
	}
	if second.New != 0 || second.Delivered != 0 {
		t.Fatalf("second cycle must be idempotent: %+v", second)
	}
	if len(f.sink.delivered()) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(f.sink.delivered()))
	}
}

func TestRunWithoutDelayUsesDefaultInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept time.Duration
	loop := NewLoop(LoopDeps{
		Scanner:  &scriptedScanner{},
		Accounts: accounts("A"),
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = d
			cancel()
			return ctx.Err()
		},
	})

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run should end by cancellation, got %v", err)
	}
	if slept != scheduler.DefaultInterval {
		t.Fatalf("expected default interval %v, got %v", scheduler.DefaultInterval, slept)
	}
}
