package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversToOwnerOnly(t *testing.T) {
	bus := NewMemoryBus()
	mine, cancelMine := bus.Subscribe("u_1")
	defer cancelMine()
	theirs, cancelTheirs := bus.Subscribe("u_2")
	defer cancelTheirs()

	require.NoError(t, bus.Publish(context.Background(), CountChanged{Kind: KindCart, OwnerID: "u_1", Count: 3}))

	select {
	case e := <-mine:
		assert.Equal(t, 3, e.Count)
		assert.Equal(t, KindCart, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}

	select {
	case e := <-theirs:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestMemoryBus_SlowSubscriberKeepsLatest(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe("u_1")
	defer cancel()

	for i := 1; i <= subscriberBuffer+5; i++ {
		require.NoError(t, bus.Publish(context.Background(), CountChanged{Kind: KindCart, OwnerID: "u_1", Count: i}))
	}

	var last CountChanged
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, subscriberBuffer+5, last.Count)
}

func TestMemoryBus_Cancel(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe("u_1")
	assert.Equal(t, 1, bus.Subscribers("u_1"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers("u_1"))
	require.NoError(t, bus.Publish(context.Background(), CountChanged{OwnerID: "u_1"}))
}

type fakeConn struct {
	mu        sync.Mutex
	published map[string][]byte
	handler   nats.MsgHandler
	subject   string
	drained   bool
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.mu.Lock()
	if f.published == nil {
		f.published = make(map[string][]byte)
	}
	f.published[subj] = data
	h := f.handler
	f.mu.Unlock()

	// Loop back like a NATS server would.
	h(&nats.Msg{Subject: subj, Data: data})
	return nil
}

func (f *fakeConn) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.subject = subj
	f.handler = cb
	return nil, nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSBus_PublishRelaysToLocalSubscribers(t *testing.T) {
	conn := &fakeConn{}
	bus, err := newNATSBus(conn, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "bazaar.counts.>", conn.subject)

	ch, cancel := bus.Subscribe("user.42")
	defer cancel()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, bus.Publish(context.Background(), CountChanged{Kind: KindWishlist, OwnerID: "user.42", Count: 2, At: at}))

	data, ok := conn.published["bazaar.counts.wishlist.user_42"]
	require.True(t, ok, "owner id dots are escaped in the subject")

	var wire CountChanged
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "user.42", wire.OwnerID)

	e := <-ch
	assert.Equal(t, 2, e.Count)
	assert.True(t, at.Equal(e.At))

	require.NoError(t, bus.Close())
	assert.True(t, conn.drained)
}

func TestNATSBus_IgnoresMalformedMessages(t *testing.T) {
	conn := &fakeConn{}
	bus, err := newNATSBus(conn, "test", nil)
	require.NoError(t, err)
	ch, cancel := bus.Subscribe("u_1")
	defer cancel()

	conn.handler(&nats.Msg{Subject: "test.cart.u_1", Data: []byte("{")})

	assert.Len(t, ch, 0)
}
