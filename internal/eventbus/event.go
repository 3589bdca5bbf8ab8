// Package eventbus fans out database row-change notifications to in-process
// subscribers. A single listener connection runs LISTEN on the store's
// notification channel and broadcasts parsed events; subscribers that fall
// behind are cut and must re-synchronize with a full scan.
package eventbus

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Event is one committed row change.
type Event struct {
	Operation Operation `json:"operation"`
	Table     string    `json:"table"`
	Data      EventData `json:"data"`
}

type EventData struct {
	ID uuid.UUID `json:"id"`
}

// ParseEvent decodes a notification payload. Parse failures are not
// retryable; the caller drops the payload.
func ParseEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, errors.Wrap(err, "failed to parse notification payload")
	}
	switch ev.Operation {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return Event{}, errors.Errorf("unknown notification operation %q", ev.Operation)
	}
	if ev.Table == "" {
		return Event{}, errors.New("notification payload missing table")
	}
	return ev, nil
}
