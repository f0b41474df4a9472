// Package server implements the RPC server: service registration through
// rpcrouter, registry and pub/sub broker wiring, a middleware chain in
// front of the router, and graceful shutdown.
//
// Connection lifecycle:
//
//	Accept conn → conn.New → one Serve goroutine reads frames and routes
//	  them through the shared Dispatcher → each kind's handler
//	  (onRequest for REQ_RPC, registry.PDManager.OnRequest for REQ_SERVICE,
//	  pubsub.PSManager.OnRequest for REQ_TOPIC) runs on that goroutine.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"zrpc/codec"
	"zrpc/conn"
	"zrpc/dispatch"
	"zrpc/internal/metrics"
	"zrpc/internal/zlog"
	"zrpc/message"
	"zrpc/middleware"
	"zrpc/pubsub"
	"zrpc/registry"
	"zrpc/rpcrouter"
)

// Server hosts the RPC router, registry, and pub/sub broker behind one
// listener, and tracks every open connection for graceful shutdown and
// close fan-out.
type Server struct {
	router   *rpcrouter.Router
	registry *registry.PDManager
	broker   *pubsub.PSManager

	dispatcher  *dispatch.Dispatcher
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	listener net.Listener
	shutdown atomic.Bool

	connMu sync.Mutex
	conns  map[*conn.Connection]struct{}
	wg     sync.WaitGroup

	dir           registry.Directory
	advertiseAddr string
	serviceNames  []string

	recent *metrics.Recent
}

// NewServer creates a server with an empty service set. dir may be nil to
// skip directory-backed advertisement entirely — the in-memory registry
// protocol, wired regardless, still serves the registry/discovery flow over
// the same listener.
func NewServer(dir registry.Directory) *Server {
	return &Server{
		router:   rpcrouter.NewRouter(),
		registry: registry.NewPDManager(),
		broker:   pubsub.NewPSManager(),
		dir:      dir,
		conns:    make(map[*conn.Connection]struct{}),
	}
}

// Use registers a middleware in front of the router. Middlewares run in the
// order they're added (onion model, outermost first).
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// EnableRecent turns on the bounded recent-call ring buffer, holding up to
// capacity entries encoded with codec's binary format. Call before Serve.
func (s *Server) EnableRecent(capacity int) {
	s.recent = metrics.NewRecent(codec.GetCodec(codec.CodecTypeBinary), capacity)
}

// Recent returns the server's recent-call ring buffer, or nil if
// EnableRecent was never called.
func (s *Server) Recent() *metrics.Recent {
	return s.recent
}

// Register installs a service descriptor built by rpcrouter.Builder.
func (s *Server) Register(desc *rpcrouter.ServiceDescriptor) error {
	if err := s.router.Register(desc); err != nil {
		return err
	}
	s.serviceNames = append(s.serviceNames, desc.Method)
	return nil
}

// Serve listens on address, optionally advertises every registered service
// at advertiseAddr through dir, and runs the accept loop until Shutdown.
func (s *Server) Serve(network, address, advertiseAddr string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.advertiseAddr = advertiseAddr

	s.handler = middleware.Chain(s.middlewares...)(s.router.Invoke)

	s.dispatcher = dispatch.New()
	dispatch.Register(s.dispatcher, message.ReqRPC, s.onRequest)
	dispatch.Register(s.dispatcher, message.ReqService, s.registry.OnRequest)
	dispatch.Register(s.dispatcher, message.ReqTopic, s.broker.OnRequest)

	if s.dir != nil && advertiseAddr != "" {
		for _, name := range s.serviceNames {
			if err := s.dir.Register(name, registry.Instance{Addr: advertiseAddr}, 10); err != nil {
				zlog.Errorf("server: directory registration failed for %s: %v", name, err)
			}
		}
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.handleConn(nc)
	}
}

// onRequest runs req through the middleware chain in front of the router
// and replies on conn.
func (s *Server) onRequest(c dispatch.Conn, req *message.ReqRPCMessage) {
	s.wg.Add(1)
	defer s.wg.Done()

	rsp := s.handler(context.Background(), req)
	rsp.SetID(req.ID())

	if s.recent != nil {
		s.recent.Record(&codec.Envelope{Method: req.Method, Payload: rsp.Result, Error: errString(rsp.RCode)})
	}

	sender, ok := c.(interface{ Send(message.Message) error })
	if !ok {
		zlog.Errorf("server: connection does not implement Send, closing")
		c.Close()
		return
	}
	if err := sender.Send(rsp); err != nil {
		zlog.Errorf("server: failed to send RSP_RPC: %v", err)
	}
}

// errString returns "" for RCode.OK and the rcode's wire string otherwise,
// matching Recent's Envelope.Error convention of empty-means-success.
func errString(rcode message.RCode) string {
	if rcode == message.OK {
		return ""
	}
	return rcode.String()
}

// handleConn wraps nc, registers it for close tracking, and starts its
// read loop on a dedicated goroutine: one connection, one ordered delivery
// goroutine.
func (s *Server) handleConn(nc net.Conn) {
	c := conn.New(nc, nc.RemoteAddr().String())

	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()

	c.OnClose(func(closed *conn.Connection) {
		s.connMu.Lock()
		delete(s.conns, closed)
		s.connMu.Unlock()

		s.registry.OnConnectionClosed(closed)
		s.broker.OnConnectionClosed(closed)
	})

	go c.Serve(s.dispatcher)
}

// Shutdown deregisters every advertised service, stops accepting new
// connections, closes every open connection, and waits up to timeout for
// in-flight requests to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.dir != nil {
		for _, name := range s.serviceNames {
			if err := s.dir.Deregister(name, s.advertiseAddr); err != nil {
				zlog.Errorf("server: directory deregistration failed for %s: %v", name, err)
			}
		}
	}

	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	s.connMu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for in-flight requests to finish")
	}
}
