package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(id, couponCode string) *Client {
	return &Client{ID: id, CouponCode: couponCode, send: make(chan WSMessage, 4)}
}

func TestHubRegisterAndWatcherCount(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)

	a := testClient("a", "SAVE10")
	b := testClient("b", "SAVE10")
	c := testClient("c", "SAVE25")

	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	require.Equal(t, 2, hub.WatcherCount("SAVE10"))
	require.Equal(t, 1, hub.WatcherCount("SAVE25"))
	require.Equal(t, 0, hub.WatcherCount("NOPE"))

	hub.Unregister(a)
	require.Equal(t, 1, hub.WatcherCount("SAVE10"))
	hub.Unregister(b)
	require.Equal(t, 0, hub.WatcherCount("SAVE10"))
}

func TestHubBroadcastToCoupon(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)

	watcher := testClient("w", "SAVE10")
	other := testClient("o", "SAVE25")
	hub.Register(watcher)
	hub.Register(other)

	hub.BroadcastToCoupon("SAVE10", "redemption", map[string]string{"user_id": "u1"})

	select {
	case msg := <-watcher.send:
		require.Equal(t, "redemption", msg.Event)
		var data map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		require.Equal(t, "u1", data["user_id"])
	default:
		t.Fatal("watcher did not receive broadcast")
	}

	select {
	case msg := <-other.send:
		t.Fatalf("unexpected message for other coupon: %v", msg.Event)
	default:
	}
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)

	slow := &Client{ID: "s", CouponCode: "SAVE10", send: make(chan WSMessage, 1)}
	hub.Register(slow)

	hub.BroadcastToCoupon("SAVE10", "redemption", map[string]int{"n": 1})
	hub.BroadcastToCoupon("SAVE10", "redemption", map[string]int{"n": 2})

	// The second message is dropped rather than blocking the hub.
	require.Len(t, slow.send, 1)
}
