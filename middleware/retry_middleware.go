package middleware

import (
	"context"
	"time"

	"zrpc/internal/zlog"
	"zrpc/message"
)

// retryableRCodes are the rcodes worth retrying: transient server-side
// conditions, not structural request errors (INVALID_PARAMS, NOT_FOUND_*
// would just fail again).
var retryableRCodes = map[message.RCode]bool{
	message.InternalError: true,
	message.Disconnected:  true,
}

// RetryMiddleware retries a request up to maxRetries times with exponential
// backoff when the response rcode looks transient.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.ReqRPCMessage) *message.RspRPCMessage {
			rsp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if !retryableRCodes[rsp.RCode] {
					return rsp
				}
				zlog.Infof("retry attempt %d for %s after rcode=%s", i+1, req.Method, rsp.RCode)
				time.Sleep(baseDelay * time.Duration(1<<i)) // Exponential backoff
				rsp = next(ctx, req)
			}
			return rsp
		}
	}
}
