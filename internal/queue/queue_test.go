package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundtrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: TypeLateCheckIn, Body: []byte(`{"student_id":"s1"}`)}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Type != TypeLateCheckIn || string(msg.Body) != `{"student_id":"s1"}` {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(0)
	cancel()
	if err := q.Publish(ctx, Message{Type: TypeLateCheckIn}); err == nil {
		t.Fatal("publish into a full queue with cancelled context should fail")
	}
}

func TestSerializeRoundtrip(t *testing.T) {
	tests := []Message{
		{Type: TypeLateCheckIn, Body: []byte(`{"class_id":"c|1"}`)},
		{Type: "other", Body: []byte("")},
	}
	for _, msg := range tests {
		got := deserialize(serialize(msg))
		if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
			t.Fatalf("roundtrip mangled %+v into %+v", msg, got)
		}
	}
}
