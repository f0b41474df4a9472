package middleware

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"zrpc/message"
)

func okResult() json.RawMessage {
	r, _ := json.Marshal(3)
	return r
}

// echoHandler simulates a handler that always succeeds.
func echoHandler(ctx context.Context, req *message.ReqRPCMessage) *message.RspRPCMessage {
	return &message.RspRPCMessage{RCode: message.OK, Result: okResult()}
}

// slowHandler simulates a handler that takes 200ms.
func slowHandler(ctx context.Context, req *message.ReqRPCMessage) *message.RspRPCMessage {
	time.Sleep(200 * time.Millisecond)
	return &message.RspRPCMessage{RCode: message.OK, Result: okResult()}
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	req := &message.ReqRPCMessage{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.RCode != message.OK {
		t.Fatalf("expect OK, got %v", resp.RCode)
	}
}

func TestTimeoutPass(t *testing.T) {
	// timeout 500ms, handler is fast, should return normally
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	req := &message.ReqRPCMessage{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.RCode != message.OK {
		t.Fatalf("expect OK, got %v", resp.RCode)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	// timeout 50ms, handler needs 200ms, should time out
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	req := &message.ReqRPCMessage{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.RCode != message.InternalError {
		t.Fatalf("expect InternalError, got %v", resp.RCode)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2 → first 2 pass immediately, 3rd rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := &message.ReqRPCMessage{Method: "Arith.Add"}

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if resp.RCode != message.OK {
			t.Fatalf("request %d should pass, got rcode: %v", i, resp.RCode)
		}
	}

	resp := handler(context.Background(), req)
	if resp.RCode != message.InternalError {
		t.Fatalf("request 3 should be rate limited, got: %v", resp.RCode)
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(), TimeOutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	req := &message.ReqRPCMessage{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.RCode != message.OK {
		t.Fatalf("expect OK, got %v", resp.RCode)
	}
}
