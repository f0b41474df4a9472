package client

import (
	"net"
	"testing"

	"zrpc/message"
	"zrpc/protocol"
)

// fakeServer accepts connections and lets the test script canned
// responses by kind, echoing back the incoming message's ID.
type fakeServer struct {
	ln net.Listener
}

func startFakeServer(t *testing.T, handle func(conn net.Conn, msg message.Message)) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fs := &fakeServer{ln: ln}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				var buf []byte
				chunk := make([]byte, 4096)
				for {
					msgs, rest, err := protocol.DecodeAll(buf)
					buf = rest
					for _, m := range msgs {
						handle(c, m)
					}
					if err != nil {
						return
					}
					n, err := c.Read(chunk)
					if n > 0 {
						buf = append(buf, chunk[:n]...)
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()
	return fs
}

func (fs *fakeServer) addr() string { return fs.ln.Addr().String() }
func (fs *fakeServer) close()       { fs.ln.Close() }

func sendFrame(t *testing.T, c net.Conn, msg message.Message) {
	t.Helper()
	frame, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRegistryClientRegisterServiceSuccess(t *testing.T) {
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok {
			return
		}
		rsp := &message.RspServiceMessage{RCode: message.OK, Optype: req.Optype}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	rc, err := NewRegistryClient(fs.addr())
	if err != nil {
		t.Fatalf("NewRegistryClient: %v", err)
	}
	defer rc.Close()

	if err := rc.RegisterService("Add", message.Host{IP: "127.0.0.1", Port: 9000}); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
}

func TestRegistryClientRegisterServiceFailure(t *testing.T) {
	fs := startFakeServer(t, func(c net.Conn, msg message.Message) {
		req, ok := msg.(*message.ReqServiceMessage)
		if !ok {
			return
		}
		rsp := &message.RspServiceMessage{RCode: message.InternalError, Optype: req.Optype}
		rsp.SetID(req.ID())
		sendFrame(t, c, rsp)
	})
	defer fs.close()

	rc, err := NewRegistryClient(fs.addr())
	if err != nil {
		t.Fatalf("NewRegistryClient: %v", err)
	}
	defer rc.Close()

	if err := rc.RegisterService("Add", message.Host{IP: "127.0.0.1", Port: 9000}); err == nil {
		t.Fatal("expected error on non-OK rcode")
	}
}
