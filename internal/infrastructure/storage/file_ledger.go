package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"CreatorWatch/internal/ports"
)

// ErrPersist marks a failure to durably record a delivered item.
var ErrPersist = errors.New("ledger persist failed")

// FileLedger keeps delivered ids in memory and rewrites a JSON document after
// every new id. The document is replaced atomically (write tmp, then rename).
type FileLedger struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	ids   []string
	index map[string]struct{}
}

var _ ports.Ledger = (*FileLedger)(nil)

// OpenFileLedger loads the document at path. A missing, unreadable or corrupt
// document yields an empty ledger and a warning; it never fails.
func OpenFileLedger(path string, logger *slog.Logger) *FileLedger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &FileLedger{
		path:   path,
		logger: logger,
		index:  map[string]struct{}{},
	}

	ids, err := readLedgerDocument(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("ledger not found, starting empty", "path", path)
	case err != nil:
		logger.Warn("ledger unreadable, starting empty", "path", path, "error", err)
	}

	for _, id := range ids {
		if _, ok := l.index[id]; ok || id == "" {
			continue
		}
		l.index[id] = struct{}{}
		l.ids = append(l.ids, id)
	}

	logger.Debug("ledger loaded", "path", path, "ids", len(l.ids))
	return l
}

// Contains reports whether id was delivered before.
func (l *FileLedger) Contains(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[id]
	return ok, nil
}

// Add records id and rewrites the document. The id stays recorded in memory
// even when persisting fails so the current run does not deliver it twice.
func (l *FileLedger) Add(_ context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("add empty id to ledger")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[id]; ok {
		return nil
	}
	l.index[id] = struct{}{}
	l.ids = append(l.ids, id)

	if err := l.persistLocked(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, id, err)
	}
	return nil
}

// Snapshot returns recorded ids in insertion order.
func (l *FileLedger) Snapshot(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out, nil
}

// Close is a no-op; every Add already persisted.
func (l *FileLedger) Close() error {
	return nil
}

func (l *FileLedger) persistLocked() error {
	payload, err := json.Marshal(l.ids)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	tmp := l.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// readLedgerDocument accepts a JSON array of ids or an object keyed by id.
func readLedgerDocument(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var set map[string]json.RawMessage
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
