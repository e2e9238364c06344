package chat

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmsouza/conversa/internal/models"
)

func testEvent(roomID string, senderID int64) Event {
	return NewMessageEvent(&models.Message{RoomID: roomID, SenderID: senderID, Body: "oi"})
}

func TestRegistryConnectAndDeliver(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	sub := r.Connect(7)
	require.NotNil(t, sub)
	assert.Equal(t, int64(7), sub.UserID())
	assert.True(t, r.IsConnected(7))

	ok := r.Deliver(7, testEvent("3_7", 3))
	assert.True(t, ok)

	ev := <-sub.Events()
	assert.Equal(t, EventNewMessage, ev.Type)
	assert.Equal(t, "3_7", ev.RoomID)
}

func TestRegistryDeliverOffline(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	ok := r.Deliver(99, testEvent("3_99", 3))
	assert.False(t, ok, "delivery to a never-connected user must report offline")
}

func TestRegistrySupersede(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	first := r.Connect(7)
	second := r.Connect(7)

	// The first subscriber's channel closes so its session loop exits.
	_, open := <-first.Events()
	assert.False(t, open, "superseded subscriber channel must be closed")

	// Delivery reaches only the second subscriber.
	require.True(t, r.Deliver(7, testEvent("3_7", 3)))
	select {
	case ev := <-second.Events():
		assert.Equal(t, "3_7", ev.RoomID)
	default:
		t.Fatal("event not delivered to superseding subscriber")
	}

	assert.Equal(t, 1, r.Len())
}

func TestRegistryDeliveryOrder(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	sub := r.Connect(7)

	e1 := testEvent("3_7", 3)
	e1.Message.ID = 1
	e2 := testEvent("3_7", 3)
	e2.Message.ID = 2

	require.True(t, r.Deliver(7, e1))
	require.True(t, r.Deliver(7, e2))

	assert.Equal(t, int64(1), (<-sub.Events()).Message.ID)
	assert.Equal(t, int64(2), (<-sub.Events()).Message.ID)
}

func TestRegistryDisconnectIdempotent(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	sub := r.Connect(7)

	r.Disconnect(7)
	r.Disconnect(7)

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.False(t, r.IsConnected(7))
}

func TestRegistryReleaseGuardsSuccessor(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	first := r.Connect(7)
	second := r.Connect(7)

	// The superseded session cleaning up after itself must not evict the
	// successor.
	r.Release(first)
	assert.True(t, r.IsConnected(7))

	r.Release(second)
	assert.False(t, r.IsConnected(7))

	// Releasing again is a no-op.
	r.Release(second)
	r.Release(nil)
}

func TestRegistryDeliverDropsWhenFull(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Connect(7)

	// Fill the buffer without draining, then one more. Deliver must not
	// block and must still report the subscriber as present.
	for i := 0; i < subscriberBuffer+5; i++ {
		ok := r.Deliver(7, testEvent("3_7", 3))
		assert.True(t, ok)
	}
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	s1 := r.Connect(1)
	s2 := r.Connect(2)

	r.Shutdown()

	_, open1 := <-s1.Events()
	_, open2 := <-s2.Events()
	assert.False(t, open1)
	assert.False(t, open2)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			r.Deliver(7, testEvent("3_7", 3))
		}
	}()

	for i := 0; i < 50; i++ {
		sub := r.Connect(7)
		go func() {
			for range sub.Events() {
			}
		}()
	}
	<-done
	r.Shutdown()
}
