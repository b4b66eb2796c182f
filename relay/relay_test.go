package relay

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestEvent_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := Event{CollectionID: "list1", ClientID: "c1", Version: 7, Kind: "move", From: 2, To: 0, At: at}

	data, err := e.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.CollectionID != "list1" || got.Version != 7 || got.Kind != "move" || got.From != 2 || !got.At.Equal(at) {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestEvent_ResetCarriesItems(t *testing.T) {
	e := Event{CollectionID: "list1", Kind: "reset", Items: []any{"a", "b"}}
	data, err := e.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 2 || got.Items[0] != "a" || got.Items[1] != "b" {
		t.Errorf("items = %v", got.Items)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestMQTTPublisher_QueueFull(t *testing.T) {
	// No run loop, so nothing drains the queue.
	p := &MQTTPublisher{queue: make(chan Event, 1)}
	if err := p.Publish(context.Background(), Event{Version: 1}); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(context.Background(), Event{Version: 2}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("error = %v, want ErrQueueFull", err)
	}
}

func TestMQTTPublisher_Topic(t *testing.T) {
	p := &MQTTPublisher{cfg: MQTTConfig{TopicPrefix: "lists"}}
	if got := p.Topic("abc"); got != "lists/abc" {
		t.Errorf("Topic = %q", got)
	}
}

func TestMQTTPublisher_Broker(t *testing.T) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		t.Skip("MQTT_BROKER not set, skipping MQTT tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := NewMQTTPublisher(ctx, MQTTConfig{BrokerURL: broker, TopicPrefix: "collab-list-test"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	for v := 1; v <= 3; v++ {
		if err := p.Publish(ctx, Event{CollectionID: "list1", Version: v, Kind: "insert", Value: v, At: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
