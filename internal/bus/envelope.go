package bus

import (
	"encoding/json"
	"errors"

	"github.com/floroz/auction-core/internal/auction"
)

// ErrSerialization is returned when an event envelope cannot be marshaled
// or unmarshaled. The bus carries only the serialized Event envelope; no
// schema is negotiated beyond this struct (spec.md §6).
var ErrSerialization = errors.New("bus: envelope serialization error")

// envelope is the wire representation of auction.Event published through
// the auction.events exchange (spec.md §6). JSON rather than protobuf: no .proto schema or
// generated bindings are available to ground a protobuf envelope on.
type envelope struct {
	ID          uint64          `json:"id"`
	AggregateID uint64          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Data        json.RawMessage `json:"data"`
	Version     int64           `json:"version"`
	CreatedAtNS int64           `json:"created_at_unix_nano"`
}

func encode(event *auction.Event) ([]byte, error) {
	env := envelope{
		ID:          event.ID,
		AggregateID: event.AggregateID,
		EventType:   string(event.EventType),
		Data:        event.Data,
		Version:     event.Version,
		CreatedAtNS: event.CreatedAt.UnixNano(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, ErrSerialization
	}
	return body, nil
}

func decode(body []byte) (*auction.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrSerialization
	}
	return &auction.Event{
		ID:          env.ID,
		AggregateID: env.AggregateID,
		EventType:   auction.EventType(env.EventType),
		Data:        env.Data,
		Version:     env.Version,
	}, nil
}
