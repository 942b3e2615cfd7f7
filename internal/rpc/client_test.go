package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handler func(method string, params []any) (any, *rpcError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetHealth(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []any) (any, *rpcError) {
		assert.Equal(t, "getHealth", method)
		return "ok", nil
	})

	c := NewClient(srv.URL)
	assert.NoError(t, c.GetHealth(context.Background()))
}

func TestGetHealthUnhealthy(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return "behind", nil
	})

	c := NewClient(srv.URL)
	assert.Error(t, c.GetHealth(context.Background()))
}

func TestGetTokenAccountBalance(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) (any, *rpcError) {
		assert.Equal(t, "getTokenAccountBalance", method)
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value":   map[string]any{"amount": "123456789", "decimals": 6},
		}, nil
	})

	c := NewClient(srv.URL)
	amount, err := c.GetTokenAccountBalance(context.Background(), "SomeAccount")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), amount)
}

func TestRPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		calls.Add(1)
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	})

	c := NewClient(srv.URL, WithMaxRetries(3))
	_, err := c.GetBalance(context.Background(), "SomeAccount")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(5))
	require.NoError(t, c.GetHealth(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendTransaction(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) (any, *rpcError) {
		assert.Equal(t, "sendTransaction", method)
		require.NotEmpty(t, params)
		return "5SignatureBase58", nil
	})

	c := NewClient(srv.URL)
	sig, err := c.SendTransaction(context.Background(), "dHJhbnNhY3Rpb24=")
	require.NoError(t, err)
	assert.Equal(t, "5SignatureBase58", sig)
}

func TestGetSignatureStatuses(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return map[string]any{
			"value": []any{
				map[string]any{"slot": 900, "confirmations": 5, "confirmationStatus": "confirmed"},
				nil,
			},
		}, nil
	})

	c := NewClient(srv.URL)
	statuses, err := c.GetSignatureStatuses(context.Background(), []string{"sig1", "sig2"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.NotNil(t, statuses[0])
	assert.Equal(t, "confirmed", statuses[0].ConfirmationStatus)
	assert.Nil(t, statuses[1])
}

func TestContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, WithMaxRetries(50))
	err := c.GetHealth(ctx)
	assert.Error(t, err)
}
