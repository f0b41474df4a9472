package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"zrpc/dispatch"
	"zrpc/loadbalance"
	"zrpc/message"
	"zrpc/requestor"
	"zrpc/transport"
)

// poolSize is the number of multiplexed connections the discovery-mode
// RpcClient keeps open per provider host.
const poolSize = 2

// RpcClient has two modes:
//
//   - Direct mode: one connection to a named server; Call forwards to it.
//   - Discovery mode: embeds a DiscoveryClient and a host→pool cache,
//     populated lazily and pruned by the offline callback.
type RpcClient struct {
	requestor  *requestor.Requestor
	dispatcher *dispatch.Dispatcher

	direct *transport.Pool

	discovery *DiscoveryClient
	mu        sync.RWMutex
	cache     map[string]*transport.Pool
	dialGroup singleflight.Group
}

func newRpcClientCore() (*requestor.Requestor, *dispatch.Dispatcher) {
	r := requestor.New()
	d := dispatch.New()
	dispatch.Register(d, message.RspRPC, r.OnRPCResponse)
	return r, d
}

// NewDirectRpcClient opens a small pool of connections to addr and sends
// every Call over it.
func NewDirectRpcClient(addr string) (*RpcClient, error) {
	r, d := newRpcClientCore()
	rc := &RpcClient{requestor: r, dispatcher: d, direct: transport.NewPool(addr, poolSize, d)}
	if _, err := rc.direct.Next(); err != nil {
		return nil, err
	}
	return rc, nil
}

// NewDiscoveryRpcClient connects to registryAddr for discovery and lazily
// dials providers as methods are called, picking among same-method
// providers with RoundRobinBalancer.
func NewDiscoveryRpcClient(registryAddr string) (*RpcClient, error) {
	return NewDiscoveryRpcClientWithBalancer(registryAddr, &loadbalance.RoundRobinBalancer{})
}

// NewDiscoveryRpcClientWithBalancer is NewDiscoveryRpcClient with an
// explicit provider-selection strategy. Discovered hosts carry no weight
// (each is given weight 1), so a WeightedRandomBalancer picks among them
// uniformly at random.
func NewDiscoveryRpcClientWithBalancer(registryAddr string, bal loadbalance.Balancer) (*RpcClient, error) {
	r, d := newRpcClientCore()
	rc := &RpcClient{requestor: r, dispatcher: d, cache: make(map[string]*transport.Pool)}

	dc, err := NewDiscoveryClientWithBalancer(registryAddr, rc.onHostOffline, bal)
	if err != nil {
		return nil, err
	}
	rc.discovery = dc
	return rc, nil
}

// onHostOffline drops addr's pool from the cache. In-flight requests on its
// connections still complete or fail via the DISCONNECTED path when the
// peer eventually drops them; Close isn't called here since other
// goroutines may still be holding connections from it.
func (rc *RpcClient) onHostOffline(method string, host message.Host) {
	addr := hostAddr(host)
	rc.mu.Lock()
	delete(rc.cache, addr)
	rc.mu.Unlock()
}

func hostAddr(h message.Host) string {
	return fmt.Sprintf("%s:%d", h.IP, h.Port)
}

// getPool returns the cached pool for addr, creating it if absent.
// Concurrent first-callers for the same addr are collapsed onto a single
// creation via singleflight so a burst of Calls to a newly-discovered host
// doesn't open poolSize*N redundant dials, and the cache lock is never held
// across the dial itself.
func (rc *RpcClient) getPool(addr string) (*transport.Pool, error) {
	rc.mu.RLock()
	p, ok := rc.cache[addr]
	rc.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := rc.dialGroup.Do(addr, func() (interface{}, error) {
		rc.mu.RLock()
		if existing, ok := rc.cache[addr]; ok {
			rc.mu.RUnlock()
			return existing, nil
		}
		rc.mu.RUnlock()

		p := transport.NewPool(addr, poolSize, rc.dispatcher)
		if _, err := p.Next(); err != nil {
			return nil, err
		}

		rc.mu.Lock()
		rc.cache[addr] = p
		rc.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*transport.Pool), nil
}

// Call invokes method with params and returns the raw JSON result, blocking
// until the response arrives. Non-OK rcodes are translated into call
// failures.
func (rc *RpcClient) Call(method string, params map[string]any) (json.RawMessage, error) {
	encodedParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req := &message.ReqRPCMessage{Method: method, Params: encodedParams}

	sender, err := rc.senderFor(method)
	if err != nil {
		return nil, err
	}

	rsp, err := rc.requestor.SendBlocking(sender, req)
	if err != nil {
		return nil, err
	}
	rpcRsp, ok := rsp.(*message.RspRPCMessage)
	if !ok {
		return nil, fmt.Errorf("client: unexpected response type %T", rsp)
	}
	if rpcRsp.RCode != message.OK {
		return nil, fmt.Errorf("client: call to %s failed: %s", method, rpcRsp.RCode)
	}
	return rpcRsp.Result, nil
}

func (rc *RpcClient) senderFor(method string) (requestor.Sender, error) {
	if rc.direct != nil {
		return rc.direct.Next()
	}

	host, err := rc.discovery.DiscoverService(method)
	if err != nil {
		return nil, err
	}
	pool, err := rc.getPool(hostAddr(host))
	if err != nil {
		return nil, err
	}
	return pool.Next()
}

// Close tears down every connection this client holds.
func (rc *RpcClient) Close() error {
	if rc.direct != nil {
		return rc.direct.Close()
	}
	if rc.discovery != nil {
		rc.discovery.Close()
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, p := range rc.cache {
		p.Close()
	}
	return nil
}
