// Package transport provides a round-robin pool of shared, multiplexed zrpc
// connections to one address, round-robin selected by an atomic counter and
// lazily dialed up to a fixed size. A conn.Connection already multiplexes
// concurrent requests through the requestor's id-keyed correlation, so every
// connection in the pool is always "checked out" to everyone at once —
// there's no borrow/return step.
package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"zrpc/conn"
	"zrpc/dispatch"
)

// Pool holds up to size concurrently-open connections to addr and hands
// them out round-robin. Connections are created lazily on first use.
type Pool struct {
	addr       string
	size       int
	dispatcher *dispatch.Dispatcher

	mu      sync.Mutex
	conns   []*conn.Connection
	counter uint64
}

// NewPool creates a pool for addr with up to size connections, each served
// by d.
func NewPool(addr string, size int, d *dispatch.Dispatcher) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{addr: addr, size: size, dispatcher: d}
}

// Next returns the next connection in round-robin order, dialing lazily up
// to size connections before cycling.
func (p *Pool) Next() (*conn.Connection, error) {
	p.mu.Lock()
	if len(p.conns) < p.size {
		nc, err := net.Dial("tcp", p.addr)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		c := conn.New(nc, p.addr)
		go c.Serve(p.dispatcher)
		p.conns = append(p.conns, c)
	}
	conns := p.conns
	p.mu.Unlock()

	n := atomic.AddUint64(&p.counter, 1) - 1
	return conns[n%uint64(len(conns))], nil
}

// Close closes every connection the pool has opened.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.conns = nil
	return firstErr
}
