// Package dispatch implements the type-erased kind→handler message router
// shared by every side of zrpc (rpc router, registry managers, pub/sub
// broker, requestor), expressed with Go generics: a handler registered for
// kind K receives the concrete T it was built with. The conversion to T is
// a runtime type assertion; if the decoded message is not a T, OnMessage
// closes the connection instead of calling the handler.
package dispatch

import (
	"fmt"
	"sync"

	"zrpc/internal/zlog"
	"zrpc/message"
)

// Conn is the minimal connection surface the dispatcher needs: enough to
// close it when routing fails. conn.Connection satisfies this.
type Conn interface {
	Close() error
}

// handler is the type-erased interface every callbackTemplate[T] satisfies.
type handler interface {
	invoke(conn Conn, msg message.Message) error
}

// callbackTemplate binds a concrete message type T to a user function: it
// down-casts the polymorphic message to T before calling the user's handler.
// In Go the "down-cast" is a type assertion; a mismatch here would mean the dispatcher
// was mis-registered (kind K mapped to a handler expecting a different
// concrete type than message.New(K) produces), which is a programming error
// in this package, not a runtime condition callers can trigger.
type callbackTemplate[T message.Message] struct {
	fn func(conn Conn, msg T)
}

func (c *callbackTemplate[T]) invoke(conn Conn, msg message.Message) error {
	typed, ok := msg.(T)
	if !ok {
		return fmt.Errorf("dispatch: message kind %v decoded as %T, handler expects %T", msg.Kind(), msg, typed)
	}
	c.fn(conn, typed)
	return nil
}

// Dispatcher routes a decoded message to the single handler registered for
// its kind. There is exactly one handler per kind; re-registration is a
// no-op.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[message.Kind]handler
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[message.Kind]handler)}
}

// Register installs fn as the handler for kind, unless one is already
// registered (re-registration for the same kind is a no-op).
func Register[T message.Message](d *Dispatcher, kind message.Kind, fn func(conn Conn, msg T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[kind]; exists {
		return
	}
	d.handlers[kind] = &callbackTemplate[T]{fn: fn}
}

// OnMessage looks up the handler for msg.Kind() and invokes it. A missing
// handler, or a handler whose concrete type disagrees with msg's concrete
// type, closes the connection defensively.
func (d *Dispatcher) OnMessage(conn Conn, msg message.Message) {
	d.mu.RLock()
	h, ok := d.handlers[msg.Kind()]
	d.mu.RUnlock()

	if !ok {
		zlog.Errorf("dispatch: no handler registered for kind %v, closing connection", msg.Kind())
		conn.Close()
		return
	}
	if err := h.invoke(conn, msg); err != nil {
		zlog.Errorf("%v", err)
		conn.Close()
		return
	}
}
