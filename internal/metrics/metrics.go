// Package metrics wires github.com/prometheus/client_golang into zrpc:
// counters for requests handled, rcodes returned, and pub/sub messages
// fanned out, plus a bounded recent-call ring buffer kept in the codec
// package's wire format for a compact memory footprint.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zrpc/codec"
	"zrpc/message"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zrpc_requests_total",
		Help: "Total REQ_RPC requests handled, labeled by method.",
	}, []string{"method"})

	rcodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zrpc_rcodes_total",
		Help: "Total responses returned, labeled by rcode.",
	}, []string{"rcode"})

	pubsubFanoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zrpc_pubsub_fanout_total",
		Help: "Total PUBLISH messages forwarded to subscribers.",
	})
)

// RecordRequest increments the per-method request counter and the
// per-rcode response counter. Called from rpcrouter.Router.Invoke on every
// invocation: a request retried by RetryMiddleware is counted once per
// attempt, and one rejected by RateLimitMiddleware is not counted.
func RecordRequest(method string, rcode message.RCode) {
	requestsTotal.WithLabelValues(method).Inc()
	rcodesTotal.WithLabelValues(rcode.String()).Inc()
}

// RecordFanout adds n to the pub/sub fan-out counter — n is the number of
// subscriber connections a single PUBLISH was forwarded to.
func RecordFanout(n int) {
	pubsubFanoutTotal.Add(float64(n))
}

// Handler returns the promhttp handler a caller can mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recent is a bounded ring buffer of recent call envelopes, kept encoded
// via codec.Codec rather than as live structs so a long-running server
// doesn't grow the buffer's footprint linearly with payload size over
// time — only the last capacity entries are ever held.
type Recent struct {
	mu       sync.Mutex
	codec    codec.Codec
	entries  [][]byte
	capacity int
	next     int
	filled   int
}

// NewRecent creates a ring buffer of capacity entries, encoded with c.
func NewRecent(c codec.Codec, capacity int) *Recent {
	if capacity < 1 {
		capacity = 1
	}
	return &Recent{
		codec:    c,
		entries:  make([][]byte, capacity),
		capacity: capacity,
	}
}

// Record encodes env and stores it, overwriting the oldest entry once the
// buffer is full.
func (r *Recent) Record(env *codec.Envelope) {
	data, err := r.codec.Encode(env)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = data
	r.next = (r.next + 1) % r.capacity
	if r.filled < r.capacity {
		r.filled++
	}
}

// Snapshot decodes and returns every currently-held entry, oldest first.
func (r *Recent) Snapshot() []*codec.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*codec.Envelope, 0, r.filled)
	start := r.next - r.filled
	for i := 0; i < r.filled; i++ {
		idx := ((start+i)%r.capacity + r.capacity) % r.capacity
		env := &codec.Envelope{}
		if err := r.codec.Decode(r.entries[idx], env); err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}
