package dispatch

import (
	"testing"

	"zrpc/message"
)

type fakeConn struct {
	closed bool
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestDispatcherRoutesByKind(t *testing.T) {
	d := New()
	var got *message.ReqRPCMessage
	Register(d, message.ReqRPC, func(conn Conn, msg *message.ReqRPCMessage) {
		got = msg
	})

	req := &message.ReqRPCMessage{Method: "Add"}
	req.SetID("1")

	c := &fakeConn{}
	d.OnMessage(c, req)

	if got == nil || got.Method != "Add" {
		t.Fatal("expected handler to receive the typed request")
	}
	if c.closed {
		t.Fatal("connection should not be closed on success")
	}
}

func TestDispatcherMissingHandlerClosesConnection(t *testing.T) {
	d := New()
	req := &message.ReqRPCMessage{Method: "Add"}

	c := &fakeConn{}
	d.OnMessage(c, req)

	if !c.closed {
		t.Fatal("expected connection to be closed when no handler is registered")
	}
}

func TestRegisterIsNoOpOnReRegistration(t *testing.T) {
	d := New()
	calls := 0
	Register(d, message.ReqRPC, func(conn Conn, msg *message.ReqRPCMessage) { calls++ })
	Register(d, message.ReqRPC, func(conn Conn, msg *message.ReqRPCMessage) { calls += 100 })

	req := &message.ReqRPCMessage{}
	d.OnMessage(&fakeConn{}, req)

	if calls != 1 {
		t.Fatalf("expected the first registration to win, calls = %d", calls)
	}
}
