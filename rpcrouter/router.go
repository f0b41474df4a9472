package rpcrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"zrpc/dispatch"
	"zrpc/internal/metrics"
	"zrpc/internal/zlog"
	"zrpc/message"
)

// ErrDuplicateMethod is returned by ServiceManager.Insert when method is
// already registered. Registration is write-once per method.
var ErrDuplicateMethod = fmt.Errorf("rpcrouter: method already registered")

// ServiceManager owns method name → ServiceDescriptor.
type ServiceManager struct {
	mu       sync.Mutex
	services map[string]*ServiceDescriptor
}

// NewServiceManager creates an empty ServiceManager.
func NewServiceManager() *ServiceManager {
	return &ServiceManager{services: make(map[string]*ServiceDescriptor)}
}

// Insert registers sd, rejecting it if sd.Method is already taken.
func (m *ServiceManager) Insert(sd *ServiceDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.services[sd.Method]; exists {
		zlog.Errorf("rpcrouter: rejecting duplicate registration for method %s", sd.Method)
		return ErrDuplicateMethod
	}
	m.services[sd.Method] = sd
	return nil
}

// Delete removes method's descriptor, if any.
func (m *ServiceManager) Delete(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.services, method)
}

// Select returns method's descriptor, if registered.
func (m *ServiceManager) Select(method string) (*ServiceDescriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sd, ok := m.services[method]
	return sd, ok
}

// Router is the dispatcher handler registered for REQ_RPC; it also satisfies
// middleware.HandlerFunc via Invoke, so the same validate/invoke logic backs
// both the wire path and a middleware chain fronting it.
type Router struct {
	services *ServiceManager
}

// NewRouter creates a Router over a fresh ServiceManager.
func NewRouter() *Router {
	return &Router{services: NewServiceManager()}
}

// Register adds sd to the router's service table.
func (r *Router) Register(sd *ServiceDescriptor) error {
	return r.services.Insert(sd)
}

// Invoke runs the lookup/validate/call/validate-return/respond flow and
// returns the response, without an id — callers (OnRequest, or a middleware
// chain) are responsible for correlating it to the request.
func (r *Router) Invoke(ctx context.Context, req *message.ReqRPCMessage) *message.RspRPCMessage {
	rsp := r.invoke(req)
	metrics.RecordRequest(req.Method, rsp.RCode)
	return rsp
}

func (r *Router) invoke(req *message.ReqRPCMessage) *message.RspRPCMessage {
	// 1. lookup
	sd, ok := r.services.Select(req.Method)
	if !ok {
		zlog.Errorf("rpcrouter: method %s not found", req.Method)
		return errorResponse(message.NotFoundService)
	}

	// 2. decode + validate params
	var params map[string]any
	if err := json.Unmarshal(req.Params, &params); err != nil {
		zlog.Errorf("rpcrouter: method %s: params not a JSON object", req.Method)
		return errorResponse(message.InvalidParams)
	}
	if !sd.ValidateParams(params) {
		zlog.Errorf("rpcrouter: method %s: params failed validation", req.Method)
		return errorResponse(message.InvalidParams)
	}

	// 3-4. invoke + validate return
	result, err := sd.Invoke(params)
	if err != nil {
		zlog.Errorf("rpcrouter: %v", err)
		return errorResponse(message.InternalError)
	}

	// 5. respond OK
	encoded, err := json.Marshal(result)
	if err != nil {
		zlog.Errorf("rpcrouter: method %s: failed to marshal result: %v", req.Method, err)
		return errorResponse(message.InternalError)
	}
	return &message.RspRPCMessage{RCode: message.OK, Result: encoded}
}

func errorResponse(rcode message.RCode) *message.RspRPCMessage {
	result, _ := json.Marshal(nil)
	return &message.RspRPCMessage{RCode: rcode, Result: result}
}

// OnRequest is the dispatcher handler for REQ_RPC: it runs Invoke, stamps
// the response with the request's id, and sends it back over conn.
func (r *Router) OnRequest(conn dispatch.Conn, req *message.ReqRPCMessage) {
	rsp := r.Invoke(context.Background(), req)
	rsp.SetID(req.ID())
	if sender, ok := conn.(interface{ Send(message.Message) error }); ok {
		sender.Send(rsp)
	}
}
