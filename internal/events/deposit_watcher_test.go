package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	amounts []uint64
}

func (c *captureSink) NotifyDeposit(amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amounts = append(c.amounts, amount)
}

func (c *captureSink) seen() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.amounts))
	copy(out, c.amounts)
	return out
}

func notification(lamports uint64) []byte {
	return []byte(`{"jsonrpc":"2.0","method":"accountNotification","params":{"result":{"value":{"lamports":` +
		strconv.FormatUint(lamports, 10) + `}},"subscription":1}}`)
}

func TestFirstNotificationOnlySetsBaseline(t *testing.T) {
	sink := &captureSink{}
	w := NewDepositWatcher("ws://unused", "Idle111", sink)

	w.handleMessage(notification(5_000_000))
	assert.Empty(t, sink.seen())
}

func TestBalanceIncreaseEmitsDeposit(t *testing.T) {
	sink := &captureSink{}
	w := NewDepositWatcher("ws://unused", "Idle111", sink)

	w.handleMessage(notification(5_000_000))
	w.handleMessage(notification(7_500_000))

	assert.Equal(t, []uint64{2_500_000}, sink.seen())
}

func TestBalanceDecreaseIgnored(t *testing.T) {
	sink := &captureSink{}
	w := NewDepositWatcher("ws://unused", "Idle111", sink)

	w.handleMessage(notification(5_000_000))
	w.handleMessage(notification(1_000_000))
	assert.Empty(t, sink.seen())

	// The decrease still moves the baseline; the next top-up diffs against
	// the post-spend balance.
	w.handleMessage(notification(4_000_000))
	assert.Equal(t, []uint64{3_000_000}, sink.seen())
}

func TestSubscriptionConfirmationIgnored(t *testing.T) {
	sink := &captureSink{}
	w := NewDepositWatcher("ws://unused", "Idle111", sink)

	w.handleMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	w.handleMessage(notification(5_000_000))
	w.handleMessage(notification(6_000_000))

	assert.Equal(t, []uint64{1_000_000}, sink.seen())
}

func TestMalformedMessageSkipped(t *testing.T) {
	sink := &captureSink{}
	w := NewDepositWatcher("ws://unused", "Idle111", sink)

	w.handleMessage([]byte(`not json`))
	assert.Empty(t, sink.seen())
}

// A watcher whose connection drops must not leave goroutines behind while
// the process context stays live; the supervisor restarts Run many times
// over the life of the process.
func TestRunLeavesNoGoroutinesAfterDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		w := NewDepositWatcher(wsURL, "Idle111", &captureSink{})
		require.Error(t, w.Run(ctx))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("goroutines leaked: before=%d after=%d", before, runtime.NumGoroutine())
}
