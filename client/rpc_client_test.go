package client

import (
	"encoding/json"
	"net"
	"strconv"
	"testing"

	"zrpc/message"
)

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return host, port
}

func TestRpcClientDirectCallSuccess(t *testing.T) {
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqRPCMessage)
		if !ok {
			return
		}
		result, _ := json.Marshal(3)
		rsp := &message.RspRPCMessage{RCode: message.OK, Result: result}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	rc, err := NewDirectRpcClient(fs.addr())
	if err != nil {
		t.Fatalf("NewDirectRpcClient: %v", err)
	}
	defer rc.Close()

	result, err := rc.Call("Add", map[string]any{"num1": 1, "num2": 2})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var got int
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestRpcClientDirectCallFailureRCode(t *testing.T) {
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqRPCMessage)
		if !ok {
			return
		}
		rsp := &message.RspRPCMessage{RCode: message.NotFoundService, Result: []byte("null")}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	rc, err := NewDirectRpcClient(fs.addr())
	if err != nil {
		t.Fatalf("NewDirectRpcClient: %v", err)
	}
	defer rc.Close()

	if _, err := rc.Call("Missing", nil); err == nil {
		t.Fatal("expected error for non-OK rcode")
	}
}

func TestRpcClientDiscoveryModeCallsThroughPool(t *testing.T) {
	provider := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqRPCMessage)
		if !ok {
			return
		}
		result, _ := json.Marshal("ok")
		rsp := &message.RspRPCMessage{RCode: message.OK, Result: result}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer provider.close()

	providerAddr, providerPort := splitHostPort(t, provider.addr())

	registry := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok || req.Optype != message.ServiceDiscovery {
			return
		}
		rsp := &message.RspServiceMessage{
			RCode: message.OK, Optype: message.ServiceDiscovery, Method: req.Method,
			Hosts: []message.Host{{IP: providerAddr, Port: providerPort}},
		}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer registry.close()

	rc, err := NewDiscoveryRpcClient(registry.addr())
	if err != nil {
		t.Fatalf("NewDiscoveryRpcClient: %v", err)
	}
	defer rc.Close()

	result, err := rc.Call("Greet", map[string]any{"name": "world"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var got string
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected ok, got %q", got)
	}
}
