// Package conn wraps a net.Conn (or any ordered, reliable byte stream) with
// the zrpc framing, a serialized writer, and a read loop that feeds decoded
// messages to a dispatch.Dispatcher. The same type serves both client and
// server sides, since both need identical framing, write serialization, and
// dispatch.
package conn

import (
	"bufio"
	"io"
	"net"
	"sync"

	"zrpc/dispatch"
	"zrpc/internal/zlog"
	"zrpc/message"
	"zrpc/protocol"
)

// Connection owns one underlying net.Conn. Writes are serialized through a
// single mutex so concurrent Send calls never interleave frame bytes on the
// wire.
type Connection struct {
	id   string
	nc   net.Conn
	wmu  sync.Mutex
	once sync.Once
	done chan struct{}

	closeMu   sync.Mutex
	closeHook func(*Connection)
}

// New wraps nc. id is an opaque label used only for logging.
func New(nc net.Conn, id string) *Connection {
	return &Connection{
		id:   id,
		nc:   nc,
		done: make(chan struct{}),
	}
}

// ID returns the connection's label (typically its remote address).
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the underlying connection's remote network address.
func (c *Connection) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Send encodes msg into one frame and writes it atomically.
func (c *Connection) Send(msg message.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.nc.Write(frame)
	return err
}

// OnClose registers fn to run exactly once when the connection closes,
// after Close has torn down the socket. The server's connection→wrapper
// index uses this to remove itself from the index before running user close
// callbacks, so handlers never race with the delete.
func (c *Connection) OnClose(fn func(*Connection)) {
	c.closeMu.Lock()
	c.closeHook = fn
	c.closeMu.Unlock()
}

// Close shuts down the underlying connection. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		err = c.nc.Close()
		close(c.done)
		c.closeMu.Lock()
		hook := c.closeHook
		c.closeMu.Unlock()
		if hook != nil {
			hook(c)
		}
	})
	return err
}

// Done reports, via a channel close, that Close has run.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Serve runs the read loop: it accumulates bytes from the connection,
// drains every complete frame through protocol.DecodeAll on each read, and
// routes each decoded message to d.OnMessage. It blocks until the
// connection is closed or a framing error occurs — unrecoverable framing
// errors close the connection immediately.
//
// Serve must run on its own goroutine: reads on a single connection are
// delivered to handlers in arrival order by this one goroutine.
func (c *Connection) Serve(d *dispatch.Dispatcher) {
	defer c.Close()

	r := bufio.NewReader(c.nc)
	var buf []byte
	chunk := make([]byte, 64*1024)

	for {
		msgs, rest, err := protocol.DecodeAll(buf)
		buf = rest
		for _, msg := range msgs {
			c.route(d, msg)
		}
		if err != nil {
			zlog.Errorf("conn %s: framing error, closing: %v", c.id, err)
			return
		}

		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				zlog.Debugf("conn %s: read error: %v", c.id, err)
			}
			// Drain any final complete frames already in buf before returning.
			msgs, _, _ := protocol.DecodeAll(buf)
			for _, msg := range msgs {
				c.route(d, msg)
			}
			return
		}
	}
}

// route validates msg before handing it to the dispatcher. A message that
// fails IsValid never reaches a handler: if it's a request kind, the peer
// gets back the matching response with rcode INVALID_MSG and the connection
// stays open; if it's a response kind, there is no response-to-a-response to
// send, so the frame is logged and dropped.
func (c *Connection) route(d *dispatch.Dispatcher, msg message.Message) {
	if msg.IsValid() {
		d.OnMessage(c, msg)
		return
	}

	zlog.Errorf("conn %s: invalid %v message, rejecting", c.id, msg.Kind())
	rsp := invalidResponse(msg)
	if rsp == nil {
		return
	}
	rsp.SetID(msg.ID())
	if err := c.Send(rsp); err != nil {
		zlog.Errorf("conn %s: failed to send INVALID_MSG response: %v", c.id, err)
	}
}

// invalidResponse returns the INVALID_MSG response matching a request kind,
// or nil for a response kind (nothing to reply to).
func invalidResponse(msg message.Message) message.Message {
	switch msg.Kind() {
	case message.ReqRPC:
		return &message.RspRPCMessage{RCode: message.InvalidMsg}
	case message.ReqTopic:
		return &message.RspTopicMessage{RCode: message.InvalidMsg}
	case message.ReqService:
		return &message.RspServiceMessage{RCode: message.InvalidMsg}
	default:
		return nil
	}
}
