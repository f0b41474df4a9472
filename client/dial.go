// Package client implements four client facades: RegistryClient,
// DiscoveryClient, RpcClient (direct and discovery modes), and TopicClient.
// Discovery mode follows a discover→pick→dial→call shape, backed by the
// wire-protocol registry (registry.PDManager/HostPool over REQ_SERVICE) and
// conn.Connection/requestor.Requestor.
package client

import (
	"net"

	"zrpc/conn"
	"zrpc/dispatch"
)

// dial opens a TCP connection to addr, wraps it in a conn.Connection, and
// starts its read loop against d on a dedicated goroutine: one connection,
// one ordered delivery goroutine.
func dial(addr string, d *dispatch.Dispatcher) (*conn.Connection, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := conn.New(nc, addr)
	go c.Serve(d)
	return c, nil
}
