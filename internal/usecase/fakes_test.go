package usecase

import (
	"context"
	"errors"
	"os"
	"sync"

	"CreatorWatch/internal/domain"
)

type fakeSource struct {
	mu         sync.Mutex
	items      map[string][]domain.ItemRef
	listErr    map[string]error
	fetchErr   map[string]error
	fetchPanic map[string]bool
	sounds     map[string]string
	soundErr   error
	fetches    map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		items:      map[string][]domain.ItemRef{},
		listErr:    map[string]error{},
		fetchErr:   map[string]error{},
		fetchPanic: map[string]bool{},
		sounds:     map[string]string{},
		fetches:    map[string]int{},
	}
}

func (s *fakeSource) ListItems(_ context.Context, account domain.Account) ([]domain.ItemRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.listErr[account.Handle]; err != nil {
		return nil, err
	}
	return append([]domain.ItemRef(nil), s.items[account.Handle]...), nil
}

func (s *fakeSource) FetchMedia(_ context.Context, ref domain.ItemRef, destPath string) error {
	s.mu.Lock()
	s.fetches[ref.ID]++
	err := s.fetchErr[ref.ID]
	panicky := s.fetchPanic[ref.ID]
	s.mu.Unlock()

	if panicky {
		panic("fetch exploded")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte("media:"+ref.ID), 0o644)
}

func (s *fakeSource) FetchSecondaryMetadata(_ context.Context, ref domain.ItemRef) (string, error) {
	if s.soundErr != nil {
		return "", s.soundErr
	}
	return s.sounds[ref.ID], nil
}

func (s *fakeSource) fetchCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[id]
}

type delivery struct {
	dest   domain.Destination
	record domain.DeliveryRecord
}

type fakeSink struct {
	mu         sync.Mutex
	failing    map[string]bool
	panicking  map[string]bool
	deliveries []delivery
}

func newFakeSink() *fakeSink {
	return &fakeSink{failing: map[string]bool{}, panicking: map[string]bool{}}
}

func (s *fakeSink) Deliver(_ context.Context, dest domain.Destination, record domain.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicking[dest.Category] {
		panic("sink exploded")
	}
	if s.failing[dest.Category] {
		return errors.New("telegram unavailable")
	}
	s.deliveries = append(s.deliveries, delivery{dest: dest, record: record})
	return nil
}

func (s *fakeSink) delivered() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

func (s *fakeSink) countFor(itemURL string) int {
	n := 0
	for _, d := range s.delivered() {
		if d.record.ItemURL == itemURL {
			n++
		}
	}
	return n
}

var errDiskFull = errors.New("disk full")

type memLedger struct {
	mu      sync.Mutex
	ids     []string
	addErr  error
	lookErr error
}

func (l *memLedger) Contains(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lookErr != nil {
		return false, l.lookErr
	}
	for _, v := range l.ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) Add(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.addErr != nil {
		return l.addErr
	}
	for _, v := range l.ids {
		if v == id {
			return nil
		}
	}
	l.ids = append(l.ids, id)
	return nil
}

func (l *memLedger) Snapshot(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...), nil
}

func (l *memLedger) Close() error { return nil }

func ref(account, id string) domain.ItemRef {
	return domain.ItemRef{ID: id, URL: account + "/video/" + id, Account: account}
}
