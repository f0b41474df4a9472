// Package requestor implements the request/response correlation engine
// shared by every client facade: it matches an asynchronous response back
// to the outstanding request that produced it, by id, and delivers the
// result through whichever style the caller asked for (blocking, future, or
// callback).
package requestor

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"zrpc/dispatch"
	"zrpc/internal/zlog"
	"zrpc/message"
)

// Style is the delivery style a caller chooses when sending a request.
type Style int

const (
	Blocking Style = iota
	Future
	Callback
)

// ErrTimeout is returned by Future.Wait when the deadline elapses before a
// response arrives.
var ErrTimeout = errors.New("requestor: timed out waiting for response")

// ErrDisconnected is delivered to every outstanding descriptor on a
// connection when that connection closes.
var ErrDisconnected = errors.New("requestor: connection closed with request outstanding")

// Sender is the minimal connection surface the requestor needs to transmit
// a request. conn.Connection satisfies this.
type Sender interface {
	Send(msg message.Message) error
}

// descriptor is the requestor's bookkeeping record for one outstanding
// request. It is created at send, consumed exactly once at the first
// matching response, and deleted immediately after delivery.
type descriptor struct {
	conn  Sender
	style Style
	ch    chan result
	cb    func(message.Message, error)
}

type result struct {
	msg message.Message
	err error
}

// Requestor correlates responses to requests by id.
type Requestor struct {
	mu      sync.Mutex
	pending map[string]*descriptor
}

// New creates an empty Requestor.
func New() *Requestor {
	return &Requestor{pending: make(map[string]*descriptor)}
}

// Future is a handle to a response that will arrive later.
type Future struct {
	id  string
	r   *Requestor
	ch  chan result
}

// Wait blocks unboundedly for the response — there is no built-in request
// timeout.
func (f *Future) Wait() (message.Message, error) {
	res := <-f.ch
	return res.msg, res.err
}

// WaitTimeout blocks for at most d. On timeout it removes the descriptor so
// a late response doesn't leak, and returns ErrTimeout.
func (f *Future) WaitTimeout(d time.Duration) (message.Message, error) {
	select {
	case res := <-f.ch:
		return res.msg, res.err
	case <-time.After(d):
		f.r.cancel(f.id)
		return nil, ErrTimeout
	}
}

// install assigns a fresh id to req, registers a descriptor for it under
// that id, and returns the id. This MUST happen before bytes are handed to
// the connection: if the response raced the send, the map already contains
// the descriptor.
func (r *Requestor) install(conn Sender, req message.Message, style Style, cb func(message.Message, error)) string {
	id := uuid.NewString()
	req.SetID(id)

	d := &descriptor{conn: conn, style: style, cb: cb}
	if style != Callback {
		d.ch = make(chan result, 1)
	}

	r.mu.Lock()
	r.pending[id] = d
	r.mu.Unlock()

	return id
}

func (r *Requestor) uninstall(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *Requestor) cancel(id string) {
	r.uninstall(id)
}

// SendCallback sends req over conn and invokes cb with the response (or an
// error) when it arrives, on whatever goroutine delivers the response (for
// a conn.Connection, its Serve goroutine).
func (r *Requestor) SendCallback(conn Sender, req message.Message, cb func(msg message.Message, err error)) error {
	id := r.install(conn, req, Callback, cb)
	if err := conn.Send(req); err != nil {
		r.uninstall(id)
		return err
	}
	return nil
}

// SendFuture sends req over conn and returns a Future that completes when
// the response arrives.
func (r *Requestor) SendFuture(conn Sender, req message.Message) (*Future, error) {
	id := r.install(conn, req, Future, nil)
	d := r.descriptorFor(id)

	if err := conn.Send(req); err != nil {
		r.uninstall(id)
		return nil, err
	}

	return &Future{id: id, r: r, ch: d.ch}, nil
}

func (r *Requestor) descriptorFor(id string) *descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[id]
}

// SendBlocking is convenience over SendFuture that waits unboundedly for
// the response.
func (r *Requestor) SendBlocking(conn Sender, req message.Message) (message.Message, error) {
	f, err := r.SendFuture(conn, req)
	if err != nil {
		return nil, err
	}
	return f.Wait()
}

// SendBlockingTimeout is SendBlocking bounded by d.
func (r *Requestor) SendBlockingTimeout(conn Sender, req message.Message, d time.Duration) (message.Message, error) {
	f, err := r.SendFuture(conn, req)
	if err != nil {
		return nil, err
	}
	return f.WaitTimeout(d)
}

// onResponse is the shared core of OnRPCResponse/OnTopicResponse/
// OnServiceResponse: look up the descriptor by id, deliver by style, then
// remove it. A missing id means a late or already-cancelled response and is
// logged and dropped. If two responses race in with the same id (a protocol
// bug), only the first — the one that still finds the descriptor — is
// delivered.
func (r *Requestor) onResponse(id string, msg message.Message) {
	r.mu.Lock()
	d, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		zlog.Debugf("requestor: no pending request for id %s, dropping late response", id)
		return
	}

	switch d.style {
	case Callback:
		if d.cb != nil {
			d.cb(msg, nil)
		}
	default: // Future, Blocking
		d.ch <- result{msg: msg}
	}
}

// OnRPCResponse is the dispatcher handler for RSP_RPC.
func (r *Requestor) OnRPCResponse(conn dispatch.Conn, msg *message.RspRPCMessage) { r.onResponse(msg.ID(), msg) }

// OnTopicResponse is the dispatcher handler for RSP_TOPIC.
func (r *Requestor) OnTopicResponse(conn dispatch.Conn, msg *message.RspTopicMessage) { r.onResponse(msg.ID(), msg) }

// OnServiceResponse is the dispatcher handler for RSP_SERVICE.
func (r *Requestor) OnServiceResponse(conn dispatch.Conn, msg *message.RspServiceMessage) {
	r.onResponse(msg.ID(), msg)
}

// PendingCount returns the number of outstanding descriptors — used by
// tests verifying the descriptor-cleanup invariant.
func (r *Requestor) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// CloseConnection completes every outstanding descriptor registered against
// conn with ErrDisconnected and removes it: if a connection closes with
// outstanding descriptors, each is completed with a DISCONNECTED error.
func (r *Requestor) CloseConnection(conn Sender) {
	r.mu.Lock()
	var toNotify []*descriptor
	for id, d := range r.pending {
		if d.conn == conn {
			toNotify = append(toNotify, d)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, d := range toNotify {
		switch d.style {
		case Callback:
			if d.cb != nil {
				d.cb(nil, ErrDisconnected)
			}
		default:
			d.ch <- result{err: ErrDisconnected}
		}
	}
}
