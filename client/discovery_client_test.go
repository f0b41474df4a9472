package client

import (
	"net"
	"sync"
	"testing"
	"time"

	"zrpc/loadbalance"
	"zrpc/message"
)

func TestDiscoveryClientDiscoverServiceSeedsPool(t *testing.T) {
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok || req.Optype != message.ServiceDiscovery {
			return
		}
		rsp := &message.RspServiceMessage{
			RCode:  message.OK,
			Optype: message.ServiceDiscovery,
			Method: req.Method,
			Hosts:  []message.Host{{IP: "127.0.0.1", Port: 7001}},
		}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	dc, err := NewDiscoveryClient(fs.addr(), nil)
	if err != nil {
		t.Fatalf("NewDiscoveryClient: %v", err)
	}
	defer dc.Close()

	host, err := dc.DiscoverService("Add")
	if err != nil {
		t.Fatalf("DiscoverService: %v", err)
	}
	if host.Port != 7001 {
		t.Fatalf("expected port 7001, got %d", host.Port)
	}

	// Second call is served from the pool seeded by the first call, via
	// HostPool.Snapshot and the balancer, without another DISCOVERY round
	// trip.
	host2, err := dc.DiscoverService("Add")
	if err != nil {
		t.Fatalf("DiscoverService (cached): %v", err)
	}
	if host2.Port != 7001 {
		t.Fatalf("expected port 7001, got %d", host2.Port)
	}
}

func TestDiscoveryClientDiscoverServiceNotFound(t *testing.T) {
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok {
			return
		}
		rsp := &message.RspServiceMessage{RCode: message.NotFoundService, Optype: req.Optype, Method: req.Method}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	dc, err := NewDiscoveryClient(fs.addr(), nil)
	if err != nil {
		t.Fatalf("NewDiscoveryClient: %v", err)
	}
	defer dc.Close()

	if _, err := dc.DiscoverService("Missing"); err == nil {
		t.Fatal("expected error for not-found service")
	}
}

func TestDiscoveryClientDiscoverServiceCyclesThroughBalancer(t *testing.T) {
	hosts := []message.Host{{IP: "127.0.0.1", Port: 7001}, {IP: "127.0.0.1", Port: 7002}}
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok || req.Optype != message.ServiceDiscovery {
			return
		}
		rsp := &message.RspServiceMessage{RCode: message.OK, Optype: message.ServiceDiscovery, Method: req.Method, Hosts: hosts}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	dc, err := NewDiscoveryClientWithBalancer(fs.addr(), nil, &loadbalance.RoundRobinBalancer{})
	if err != nil {
		t.Fatalf("NewDiscoveryClientWithBalancer: %v", err)
	}
	defer dc.Close()

	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		host, err := dc.DiscoverService("Add")
		if err != nil {
			t.Fatalf("DiscoverService: %v", err)
		}
		seen[host.Port] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected the round-robin balancer to visit both hosts, got %v", seen)
	}
}

func TestDiscoveryClientOfflinePushInvokesOfflineCallback(t *testing.T) {
	var mu sync.Mutex
	var gotOffline bool

	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok {
			return
		}
		if req.Optype != message.ServiceDiscovery {
			return
		}
		rsp := &message.RspServiceMessage{
			RCode: message.OK, Optype: message.ServiceDiscovery, Method: req.Method,
			Hosts: []message.Host{{IP: "127.0.0.1", Port: 7002}},
		}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)

		offline := &message.ReqServiceMessage{
			Method: req.Method,
			Optype: message.ServiceOffline,
			Host:   &message.Host{IP: "127.0.0.1", Port: 7002},
		}
		offline.SetID("push-1")
		sendFrame(t, c, offline)
	})
	defer fs.close()

	dc, err := NewDiscoveryClient(fs.addr(), func(method string, host message.Host) {
		mu.Lock()
		gotOffline = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewDiscoveryClient: %v", err)
	}
	defer dc.Close()

	if _, err := dc.DiscoverService("Add"); err != nil {
		t.Fatalf("DiscoverService: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		ok := gotOffline
		mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("offline callback was never invoked")
}
