package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is the recorded outcome of one side-effecting counterparty call.
type Entry struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Subject    string          `json:"subject"`
	Stage      string          `json:"stage"`
	Day        int             `json:"day"`
	Result     json.RawMessage `json:"result,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func (e *Entry) normalize() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
}

func (e Entry) key() []byte {
	return buildKey(e.Kind, e.Subject, e.Stage)
}

func buildKey(kind, subject, stage string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", kind, subject, stage))
}
