package usecase

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/miniconomy2025/sumsang-phones/domain"
)

// CallKey identifies one side-effecting call: a stage of a transaction, or a
// planner slot that has no transaction yet.
type CallKey struct {
	Kind    domain.Kind
	Subject string
	Stage   domain.Status
}

// TransactionKey keys a call made by the stage of a persisted transaction.
func TransactionKey(kind domain.Kind, id int64, stage domain.Status) CallKey {
	return CallKey{Kind: kind, Subject: strconv.FormatInt(id, 10), Stage: stage}
}

// CallRecord is what the journal remembers about a completed call.
type CallRecord struct {
	Key    CallKey
	Day    int
	Result json.RawMessage
}

// CallJournal abstracts the call journal so use cases stay storage-agnostic.
type CallJournal interface {
	Recall(ctx context.Context, key CallKey) (CallRecord, bool, error)
	Remember(ctx context.Context, record CallRecord) error
}

// NopJournal remembers nothing.
type NopJournal struct{}

func (NopJournal) Recall(context.Context, CallKey) (CallRecord, bool, error) {
	return CallRecord{}, false, nil
}

func (NopJournal) Remember(context.Context, CallRecord) error {
	return nil
}
