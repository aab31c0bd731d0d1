package services

import (
	"context"
	"time"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/internal/infrastructure/journal"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// JournalBridge exposes the BoltDB journal through the use case port.
type JournalBridge struct {
	store *journal.Store
}

func NewJournalBridge(store *journal.Store) *JournalBridge {
	return &JournalBridge{store: store}
}

func (b *JournalBridge) Recall(ctx context.Context, key usecase.CallKey) (usecase.CallRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return usecase.CallRecord{}, false, err
	}
	entry, found, err := b.store.Get(string(key.Kind), key.Subject, string(key.Stage))
	if err != nil || !found {
		return usecase.CallRecord{}, found, err
	}
	return usecase.CallRecord{Key: key, Day: entry.Day, Result: entry.Result}, true, nil
}

func (b *JournalBridge) Remember(ctx context.Context, record usecase.CallRecord) error {
	if b.store == nil {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.store.Put(journal.Entry{
		Kind:    string(record.Key.Kind),
		Subject: record.Key.Subject,
		Stage:   string(record.Key.Stage),
		Day:     record.Day,
		Result:  record.Result,
	})
}

// Reset clears the journal for a fresh simulation.
func (b *JournalBridge) Reset(context.Context) error {
	return b.store.Reset()
}

// Prune drops entries recorded more than retention ago. Stages older than
// that have long since been persisted.
func (b *JournalBridge) Prune(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.store.Cleanup(time.Now().Add(-retention))
}

var _ usecase.CallJournal = (*JournalBridge)(nil)
