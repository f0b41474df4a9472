package server

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"zrpc/message"
	"zrpc/protocol"
	"zrpc/rpcrouter"
)

func addDescriptor(t *testing.T) *rpcrouter.ServiceDescriptor {
	t.Helper()
	return rpcrouter.NewBuilder("Add").
		Param("num1", message.Integral).
		Param("num2", message.Integral).
		Returns(message.Integral).
		Handle(func(params map[string]any) (any, error) {
			num1 := params["num1"].(float64)
			num2 := params["num2"].(float64)
			return num1 + num2, nil
		}).
		Build()
}

func dialAndSend(t *testing.T, addr string, req *message.ReqRPCMessage) *message.RspRPCMessage {
	t.Helper()
	req.SetID("test-1")

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	frame, err := protocol.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := nc.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 4096)
	var acc []byte
	for {
		if protocol.CanProcess(acc) {
			break
		}
		n, err := nc.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		acc = append(acc, buf[:n]...)
	}

	msg, _, err := protocol.Decode(acc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rsp, ok := msg.(*message.RspRPCMessage)
	if !ok {
		t.Fatalf("expected RspRPCMessage, got %T", msg)
	}
	return rsp
}

func TestServerHandlesAddRequest(t *testing.T) {
	svr := NewServer(nil)
	if err := svr.Register(addDescriptor(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	go svr.Serve("tcp", "127.0.0.1:18881", "")
	defer svr.Shutdown(time.Second)
	time.Sleep(50 * time.Millisecond)

	params, _ := json.Marshal(map[string]any{"num1": 1, "num2": 2})
	rsp := dialAndSend(t, "127.0.0.1:18881", &message.ReqRPCMessage{Method: "Add", Params: params})

	if rsp.RCode != message.OK {
		t.Fatalf("expected OK, got %s", rsp.RCode)
	}
	var result float64
	if err := json.Unmarshal(rsp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result != 3 {
		t.Fatalf("expected 3, got %v", result)
	}
}

func TestServerMethodNotFound(t *testing.T) {
	svr := NewServer(nil)

	go svr.Serve("tcp", "127.0.0.1:18882", "")
	defer svr.Shutdown(time.Second)
	time.Sleep(50 * time.Millisecond)

	params, _ := json.Marshal(map[string]any{})
	rsp := dialAndSend(t, "127.0.0.1:18882", &message.ReqRPCMessage{Method: "Missing", Params: params})

	if rsp.RCode != message.NotFoundService {
		t.Fatalf("expected NotFoundService, got %s", rsp.RCode)
	}
}

func TestServerRecentRecordsRequests(t *testing.T) {
	svr := NewServer(nil)
	svr.EnableRecent(4)
	if err := svr.Register(addDescriptor(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	go svr.Serve("tcp", "127.0.0.1:18883", "")
	defer svr.Shutdown(time.Second)
	time.Sleep(50 * time.Millisecond)

	params, _ := json.Marshal(map[string]any{"num1": 1, "num2": 2})
	dialAndSend(t, "127.0.0.1:18883", &message.ReqRPCMessage{Method: "Add", Params: params})

	entries := svr.Recent().Snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected 1 recorded entry, got %d", len(entries))
	}
	if entries[0].Method != "Add" {
		t.Fatalf("recorded method = %q, want Add", entries[0].Method)
	}
	if entries[0].Error != "" {
		t.Fatalf("recorded error = %q, want empty for a successful call", entries[0].Error)
	}
}

func TestServerDuplicateRegistrationRejected(t *testing.T) {
	svr := NewServer(nil)
	if err := svr.Register(addDescriptor(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svr.Register(addDescriptor(t)); err == nil {
		t.Fatal("expected duplicate registration to be rejected")
	}
}
