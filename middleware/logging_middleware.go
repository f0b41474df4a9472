package middleware

import (
	"time"

	"context"

	"zrpc/internal/zlog"
	"zrpc/message"
)

// LoggingMiddleware records the method, duration, and rcode for each RPC call.
// It captures the start time before calling next, and logs the elapsed time
// after next returns.
//
// Example output:
//
//	INFO: method=Arith.Add duration=42µs rcode=OK
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.ReqRPCMessage) *message.RspRPCMessage {
			start := time.Now()

			// Call the next handler in the chain
			rsp := next(ctx, req)

			// Post-processing: log duration and rcode
			duration := time.Since(start)
			zlog.Infof("method=%s duration=%s rcode=%s", req.Method, duration, rsp.RCode)
			return rsp
		}
	}
}
