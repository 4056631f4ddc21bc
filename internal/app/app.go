package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"CreatorWatch/internal/config"
	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/infrastructure/httpclient"
	"CreatorWatch/internal/infrastructure/media"
	"CreatorWatch/internal/infrastructure/parser"
	"CreatorWatch/internal/infrastructure/scheduler"
	"CreatorWatch/internal/infrastructure/storage"
	"CreatorWatch/internal/infrastructure/systemd"
	"CreatorWatch/internal/infrastructure/telegram"
	"CreatorWatch/internal/logging"
	"CreatorWatch/internal/ports"
	"CreatorWatch/internal/scanner"
	"CreatorWatch/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	ledger  ports.Ledger
	loop    *usecase.Loop
	systemd *systemd.Notifier
}

// New builds every adapter once and hands them to the loop. Credential and
// ledger errors are returned so the caller can stop startup.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	client, err := httpclient.New(httpclient.Options{
		UserAgent:   cfg.Source.UserAgent,
		CookiesFile: cfg.Source.CookiesFile,
	})
	if err != nil {
		return nil, fmt.Errorf("source credentials: %w", err)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewTikTokScanner(client, baseLogger.With("component", "scanner.tiktok")))
	registry.Register(parser.NewFeedScanner(client, baseLogger.With("component", "scanner.feed")))

	for _, account := range cfg.DomainAccounts() {
		name := account.Scanner
		if name == "" {
			name = parser.DefaultStrategy
		}
		if _, err := registry.Resolve(name); err != nil {
			return nil, fmt.Errorf("%w: account %s: %v (available: %s)",
				config.ErrInvalid, account.Handle, err, strings.Join(registry.Names(), ", "))
		}
	}

	fetcher := media.Router{
		Direct: media.NewHTTPFetcher(client),
		Page:   media.NewYtDlpFetcher(cfg.Source.YtDlpPath, cfg.Source.CookiesFile),
	}
	source := parser.NewStrategySource(registry, fetcher, parser.Timeouts{
		Request:  cfg.Source.RequestTimeoutDuration(),
		Download: cfg.Source.DownloadTimeoutDuration(),
	}, baseLogger.With("component", "source"))

	sink, err := telegram.NewNotifier(telegram.Config{
		BotToken:      cfg.Notifications.Telegram.BotToken,
		APIURL:        cfg.Notifications.Telegram.APIURL,
		SendAs:        cfg.Delivery.SendAs,
		RatePerSecond: cfg.Delivery.RatePerSecond,
		RetryMax:      cfg.Delivery.RetryMax,
	}, baseLogger.With("component", "telegram"))
	if err != nil {
		return nil, err
	}

	delay, err := newDelay(cfg.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	ledger, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Ledger.Driver,
		Path:   cfg.Ledger.Path,
		DSN:    cfg.Ledger.DSN,
	}, baseLogger.With("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	processor := usecase.NewProcessor(usecase.ProcessorDeps{
		Source:         source,
		Ledger:         ledger,
		Sink:           sink,
		Logger:         baseLogger.With("component", "processor"),
		DownloadFolder: cfg.Downloads.Folder,
		Extension:      cfg.Downloads.Extension,
		ChatID:         cfg.Notifications.Telegram.ChatIDValue(),
		Topics:         cfg.Topics,
		Policy:         domain.LedgerPolicy(cfg.Delivery.Policy),
	})
	accountScanner := usecase.NewAccountScanner(source, ledger, processor, baseLogger.With("component", "scanner"))

	notifier := systemd.NewNotifier(baseLogger.With("component", "systemd"))
	loop := usecase.NewLoop(usecase.LoopDeps{
		Scanner:   accountScanner,
		Accounts:  cfg.DomainAccounts(),
		Delay:     delay,
		Sleep:     scheduler.Sleep,
		Observers: []ports.CycleObserver{notifier},
		Logger:    baseLogger.With("component", "loop"),
	})

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		ledger:  ledger,
		loop:    loop,
		systemd: notifier,
	}, nil
}

// Run blocks until ctx is cancelled. Cancellation is a clean stop.
func (a *Application) Run(ctx context.Context) error {
	if known, err := a.ledger.Snapshot(ctx); err == nil {
		a.logger.Info("ledger loaded", "driver", a.cfg.Ledger.Driver, "items", len(known))
	}

	a.systemd.Ready()
	defer a.systemd.Stopping()

	err := a.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("shutting down")
		return nil
	}
	return err
}

// Close releases the ledger.
func (a *Application) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

func newDelay(cfg config.SchedulerConfig) (ports.Delay, error) {
	if expr := strings.TrimSpace(cfg.CronExpression); expr != "" {
		return scheduler.NewCronDelay(expr, cfg.Location())
	}
	return scheduler.FixedDelay{Interval: cfg.IntervalDuration()}, nil
}
