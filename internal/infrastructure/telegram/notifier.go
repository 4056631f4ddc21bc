package telegram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/ports"
)

// ErrMisconfigured is returned when the bot cannot be built from configuration.
var ErrMisconfigured = errors.New("telegram notifier misconfigured")

// Media kinds accepted by Config.SendAs.
const (
	SendAsDocument = "document"
	SendAsVideo    = "video"
)

// Config holds everything needed to reach the Bot API.
type Config struct {
	BotToken      string
	APIURL        string
	SendAs        string
	RatePerSecond float64
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	Timeout       time.Duration
}

// Notifier sends delivery records to a Telegram chat, one message plus one
// media upload per destination.
type Notifier struct {
	bot     *tele.Bot
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ ports.Sink = (*Notifier)(nil)

// NewNotifier builds the bot client. It does not call getMe, so construction
// never touches the network.
func NewNotifier(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("%w: empty bot token", ErrMisconfigured)
	}
	if cfg.SendAs == "" {
		cfg.SendAs = SendAsDocument
	}
	if cfg.SendAs != SendAsDocument && cfg.SendAs != SendAsVideo {
		return nil, fmt.Errorf("%w: unknown sendAs %q", ErrMisconfigured, cfg.SendAs)
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.BotToken,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Notifier{
		bot:     bot,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		logger:  logger,
	}, nil
}

// Deliver posts the caption and then attaches the media to dest.
func (n *Notifier) Deliver(ctx context.Context, dest domain.Destination, record domain.DeliveryRecord) error {
	if n == nil || n.bot == nil {
		return ErrMisconfigured
	}

	if _, err := os.Stat(record.Artifact.Path); err != nil {
		return fmt.Errorf("artifact for %s: %w", dest.Category, err)
	}

	chat := &tele.Chat{ID: dest.ChatID}
	opts := &tele.SendOptions{ThreadID: dest.ThreadID}

	if err := n.sendWithRetry(ctx, "text", func() error {
		_, err := n.bot.Send(chat, record.Caption(), opts)
		return err
	}); err != nil {
		return fmt.Errorf("send message to %s: %w", dest.Category, err)
	}

	if err := n.sendWithRetry(ctx, n.cfg.SendAs, func() error {
		_, err := n.bot.Send(chat, n.media(record.Artifact), opts)
		return err
	}); err != nil {
		return fmt.Errorf("send %s to %s: %w", n.cfg.SendAs, dest.Category, err)
	}

	n.logger.Debug("delivered", "category", dest.Category, "chat_id", dest.ChatID, "thread_id", dest.ThreadID)
	return nil
}

func (n *Notifier) media(artifact domain.MediaArtifact) tele.Sendable {
	file := tele.FromDisk(artifact.Path)
	name := filepath.Base(artifact.Path)
	if n.cfg.SendAs == SendAsVideo {
		return &tele.Video{File: file, FileName: name, Streaming: true}
	}
	return &tele.Document{File: file, FileName: name}
}

func (n *Notifier) sendWithRetry(ctx context.Context, kind string, send func() error) error {
	maxAttempts := 1 + n.cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		err := send()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt >= maxAttempts {
			break
		}

		delay := retryDelay(n.cfg, attempt)
		var flood tele.FloodError
		if errors.As(err, &flood) && flood.RetryAfter > 0 {
			delay = time.Duration(flood.RetryAfter) * time.Second
		}
		n.logger.Debug("telegram send failed, retrying", "kind", kind, "attempt", attempt, "delay", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

// retryable rejects errors that repeat on every attempt, like a wrong chat or a missing file.
func retryable(err error) bool {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) {
		return false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
