package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"CreatorWatch/internal/config"
	"CreatorWatch/internal/infrastructure/httpclient"
	"CreatorWatch/internal/infrastructure/scheduler"
)

func testConfig(t *testing.T, extra string) config.Config {
	t.Helper()
	dir := t.TempDir()
	raw := fmt.Sprintf(`
ledger:
  driver: file
  path: %q
downloads:
  folder: %q
notifications:
  telegram:
    botToken: "123:abc"
    chatId: "-100"
    apiUrl: "http://127.0.0.1:1"
accounts:
  - handle: https://example.org/feed.xml
    scanner: feed
    categories: [news]
%s`, filepath.Join(dir, "ledger.json"), filepath.Join(dir, "media"), extra)

	cfg, err := config.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestNewAndRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	application, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run after cancel should be a clean stop, got %v", err)
	}
}

func TestNewRejectsMissingCookies(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	cfg.Source.CookiesFile = filepath.Join(t.TempDir(), "cookies.txt")

	if _, err := New(context.Background(), cfg, nil); !errors.Is(err, httpclient.ErrCredentials) {
		t.Fatalf("expected ErrCredentials, got %v", err)
	}
}

func TestNewRejectsUnknownScanner(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	cfg.Accounts[0].Scanner = "instagram"

	if _, err := New(context.Background(), cfg, nil); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestNewDelaySelection(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "scheduler:\n  cronExpression: \"@every 10m\"\n")
	delay, err := newDelay(cfg.Scheduler)
	if err != nil {
		t.Fatalf("newDelay: %v", err)
	}
	if _, ok := delay.(*scheduler.CronDelay); !ok {
		t.Fatalf("expected cron delay, got %T", delay)
	}

	delay, err = newDelay(testConfig(t, "").Scheduler)
	if err != nil {
		t.Fatalf("newDelay: %v", err)
	}
	fixed, ok := delay.(scheduler.FixedDelay)
	if !ok || fixed.Interval != 600*time.Second {
		t.Fatalf("expected 600s fixed delay, got %#v", delay)
	}
}
