// Package events watches the idle account over a websocket subscription and
// reports inbound deposits to the scheduler.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// DepositSink receives observed deposit amounts in native units.
type DepositSink interface {
	NotifyDeposit(amount uint64)
}

// DepositWatcher subscribes to idle account changes and emits the balance
// increase of each change as a deposit event. Balance decreases are the
// controller's own spending and are ignored.
type DepositWatcher struct {
	wsURL       string
	idleAccount string
	sink        DepositSink

	lastBalance uint64
	hasBaseline bool
	log         zerolog.Logger
}

func NewDepositWatcher(wsURL, idleAccount string, sink DepositSink) *DepositWatcher {
	return &DepositWatcher{
		wsURL:       wsURL,
		idleAccount: idleAccount,
		sink:        sink,
		log:         logger.GetForComponent("deposit_watcher"),
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type accountNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Lamports uint64 `json:"lamports"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Run connects, subscribes and pumps notifications until the connection
// drops or ctx is cancelled. Reconnection is the supervisor's job; Run
// returns an error on any disconnect.
func (w *DepositWatcher) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", w.wsURL, err)
	}
	defer conn.Close()

	if err := w.subscribe(conn); err != nil {
		return err
	}
	w.log.Info().Str("account", w.idleAccount).Msg("Deposit watcher subscribed")

	// Close the connection when ctx ends so the read loop unblocks. The
	// done channel releases the closer goroutine when Run exits on a read
	// error instead, so restarts do not accumulate goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go w.pingLoop(ctx, done, conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		w.handleMessage(payload)
	}
}

func (w *DepositWatcher) subscribe(conn *websocket.Conn) error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []any{
			w.idleAccount,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending subscription: %w", err)
	}
	return nil
}

func (w *DepositWatcher) pingLoop(ctx context.Context, done <-chan struct{}, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage diffs each account notification against the last observed
// balance. The first notification only establishes the baseline.
func (w *DepositWatcher) handleMessage(payload []byte) {
	var note accountNotification
	if err := json.Unmarshal(payload, &note); err != nil {
		w.log.Debug().Err(err).Msg("Unparseable websocket message, skipped")
		return
	}
	if note.Method != "accountNotification" {
		return
	}

	balance := note.Params.Result.Value.Lamports
	if !w.hasBaseline {
		w.hasBaseline = true
		w.lastBalance = balance
		w.log.Debug().Uint64("balance", balance).Msg("Baseline balance established")
		return
	}

	prev := w.lastBalance
	w.lastBalance = balance
	if balance <= prev {
		return
	}

	deposit := balance - prev
	w.log.Info().Uint64("amount", deposit).Msg("Deposit observed")
	w.sink.NotifyDeposit(deposit)
}
