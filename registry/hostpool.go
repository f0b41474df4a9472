package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"zrpc/message"
)

// pool is a mutable ordered list of provider addresses for one method plus
// a round-robin cursor. The cursor is an atomic counter modulo the slice
// length, which is sound provided pool updates (add/remove) are serialized
// with reads — the pool's own mutex guarantees that here.
type pool struct {
	mu      sync.Mutex
	hosts   []message.Host
	cursor  uint64
}

func (p *pool) next() (message.Host, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.hosts) == 0 {
		return message.Host{}, fmt.Errorf("registry: no hosts available")
	}
	n := atomic.AddUint64(&p.cursor, 1)
	return p.hosts[n%uint64(len(p.hosts))], nil
}

func (p *pool) add(h message.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.hosts {
		if existing == h {
			return
		}
	}
	p.hosts = append(p.hosts, h)
}

// remove scans linearly and breaks on first match.
func (p *pool) remove(h message.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.hosts {
		if existing == h {
			p.hosts = append(p.hosts[:i], p.hosts[i+1:]...)
			break
		}
	}
}

func (p *pool) contains(h message.Host) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.hosts {
		if existing == h {
			return true
		}
	}
	return false
}

// HostPool is the client-side discovery state: a method→pool map, lazily
// populated on first query, grown on ONLINE and shrunk on OFFLINE
// notifications.
type HostPool struct {
	mu    sync.Mutex
	byMethod map[string]*pool
}

// NewHostPool creates an empty HostPool.
func NewHostPool() *HostPool {
	return &HostPool{byMethod: make(map[string]*pool)}
}

func (hp *HostPool) poolFor(method string) *pool {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	p, ok := hp.byMethod[method]
	if !ok {
		p = &pool{}
		hp.byMethod[method] = p
	}
	return p
}

// Seed populates method's pool the first time it's queried (from a
// DISCOVERY response).
func (hp *HostPool) Seed(method string, hosts []message.Host) {
	p := hp.poolFor(method)
	p.mu.Lock()
	p.hosts = append([]message.Host{}, hosts...)
	p.mu.Unlock()
}

// Next picks the next host for method in round-robin order.
func (hp *HostPool) Next(method string) (message.Host, error) {
	return hp.poolFor(method).next()
}

// Snapshot returns a copy of method's current host list, for callers that
// pick among hosts with their own strategy (see loadbalance.Balancer)
// instead of this pool's built-in round-robin cursor.
func (hp *HostPool) Snapshot(method string) []message.Host {
	p := hp.poolFor(method)
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message.Host{}, p.hosts...)
}

// Online adds host to method's pool.
func (hp *HostPool) Online(method string, host message.Host) {
	hp.poolFor(method).add(host)
}

// Offline removes host from method's pool. Offline after a matching Online
// leaves no entry for host.
func (hp *HostPool) Offline(method string, host message.Host) {
	hp.poolFor(method).remove(host)
}

// Contains reports whether host is currently in method's pool.
func (hp *HostPool) Contains(method string, host message.Host) bool {
	return hp.poolFor(method).contains(host)
}
