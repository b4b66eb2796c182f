// Package relay publishes every change accepted by a collection to
// downstream consumers.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrQueueFull is returned when an event cannot be queued for publishing.
var ErrQueueFull = errors.New("relay queue full")

// Event describes one accepted change. Kind is an operation kind name or
// "reset", in which case Items holds the new contents.
type Event struct {
	CollectionID string    `msgpack:"collection"`
	ClientID     string    `msgpack:"client,omitempty"`
	Version      int       `msgpack:"version"`
	Kind         string    `msgpack:"kind"`
	Index        int       `msgpack:"index,omitempty"`
	From         int       `msgpack:"from,omitempty"`
	To           int       `msgpack:"to,omitempty"`
	Value        any       `msgpack:"value,omitempty"`
	Items        []any     `msgpack:"items,omitempty"`
	At           time.Time `msgpack:"at"`
}

func (e Event) Marshal() ([]byte, error) {
	return msgpack.Marshal(e)
}

func UnmarshalEvent(data []byte) (Event, error) {
	var e Event
	err := msgpack.Unmarshal(data, &e)
	return e, err
}

// Publisher delivers events. Publish must not block on the network.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close(ctx context.Context) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close(context.Context) error          { return nil }
