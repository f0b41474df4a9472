package client

import (
	"fmt"

	"zrpc/conn"
	"zrpc/dispatch"
	"zrpc/loadbalance"
	"zrpc/message"
	"zrpc/registry"
	"zrpc/requestor"
)

// OfflineCallback is invoked whenever an OFFLINE notification arrives for a
// method this client has discovered.
type OfflineCallback func(method string, host message.Host)

// DiscoveryClient holds one connection to the registry and exposes
// DiscoverService; it also accepts an offline callback invoked whenever an
// OFFLINE push arrives.
type DiscoveryClient struct {
	conn      *conn.Connection
	requestor *requestor.Requestor
	pool      *registry.HostPool
	balancer  loadbalance.Balancer
	offlineCb OfflineCallback
}

// NewDiscoveryClient dials addr and prepares a connection dedicated to
// service discovery, picking among discovered hosts with RoundRobinBalancer.
// offlineCb may be nil.
func NewDiscoveryClient(addr string, offlineCb OfflineCallback) (*DiscoveryClient, error) {
	return NewDiscoveryClientWithBalancer(addr, offlineCb, &loadbalance.RoundRobinBalancer{})
}

// NewDiscoveryClientWithBalancer is NewDiscoveryClient with an explicit
// selection strategy. pick gives every host a weight of 1, so a
// WeightedRandomBalancer chooses among them uniformly at random.
func NewDiscoveryClientWithBalancer(addr string, offlineCb OfflineCallback, bal loadbalance.Balancer) (*DiscoveryClient, error) {
	r := requestor.New()
	d := dispatch.New()
	dc := &DiscoveryClient{
		requestor: r,
		pool:      registry.NewHostPool(),
		balancer:  bal,
		offlineCb: offlineCb,
	}

	dispatch.Register(d, message.RspService, r.OnServiceResponse)
	dispatch.Register(d, message.ReqService, dc.onPush)

	c, err := dial(addr, d)
	if err != nil {
		return nil, err
	}
	dc.conn = c
	c.OnClose(func(*conn.Connection) { r.CloseConnection(c) })
	return dc, nil
}

// onPush handles unsolicited ONLINE/OFFLINE REQ_SERVICE pushes from the
// registry's DiscovererManager (registry.notify), updating the local
// HostPool and invoking the offline callback.
func (dc *DiscoveryClient) onPush(conn dispatch.Conn, msg *message.ReqServiceMessage) {
	if msg.Host == nil {
		return
	}
	switch msg.Optype {
	case message.ServiceOnline:
		dc.pool.Online(msg.Method, *msg.Host)
	case message.ServiceOffline:
		dc.pool.Offline(msg.Method, *msg.Host)
		if dc.offlineCb != nil {
			dc.offlineCb(msg.Method, *msg.Host)
		}
	}
}

// DiscoverService picks a host for method using dc.balancer, querying the
// registry and seeding the local pool on first use.
func (dc *DiscoveryClient) DiscoverService(method string) (message.Host, error) {
	hosts := dc.pool.Snapshot(method)
	if len(hosts) == 0 {
		req := &message.ReqServiceMessage{Method: method, Optype: message.ServiceDiscovery}
		rsp, err := dc.requestor.SendBlocking(dc.conn, req)
		if err != nil {
			return message.Host{}, err
		}
		svcRsp, ok := rsp.(*message.RspServiceMessage)
		if !ok {
			return message.Host{}, fmt.Errorf("client: unexpected response type %T", rsp)
		}
		if svcRsp.RCode != message.OK {
			return message.Host{}, fmt.Errorf("client: discovery failed: %s", svcRsp.RCode)
		}

		dc.pool.Seed(method, svcRsp.Hosts)
		hosts = dc.pool.Snapshot(method)
	}
	return dc.pick(hosts)
}

// pick runs hosts through dc.balancer and maps the chosen instance back to
// its message.Host.
func (dc *DiscoveryClient) pick(hosts []message.Host) (message.Host, error) {
	if len(hosts) == 0 {
		return message.Host{}, fmt.Errorf("client: no hosts available")
	}
	instances := make([]registry.Instance, len(hosts))
	for i, h := range hosts {
		instances[i] = registry.Instance{Addr: hostAddr(h), Weight: 1}
	}
	inst, err := dc.balancer.Pick(instances)
	if err != nil {
		return message.Host{}, err
	}
	for _, h := range hosts {
		if hostAddr(h) == inst.Addr {
			return h, nil
		}
	}
	return message.Host{}, fmt.Errorf("client: picked instance %s not found in host list", inst.Addr)
}

// Close tears down the discovery connection.
func (dc *DiscoveryClient) Close() error {
	return dc.conn.Close()
}
