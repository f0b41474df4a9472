// Package rpcrouter implements the server-side RPC dispatch table: services
// register a method name, a parameter type contract, a callback, and a
// return type contract; Router validates and invokes on every REQ_RPC.
// Parameters are decoded with encoding/json into map[string]any and checked
// against an explicit per-parameter type tag rather than a Go struct shape.
package rpcrouter

import (
	"fmt"

	"zrpc/message"
)

// ParamDesc names one expected parameter and its JSON shape.
type ParamDesc struct {
	Name string
	Type message.ParamType
}

// Callback is the business logic a service registers for one method. params
// is the request's "parameters" object decoded into a plain map; the
// returned value is marshaled into the response's "result" field after
// passing the declared ReturnType check.
type Callback func(params map[string]any) (any, error)

// ServiceDescriptor validates and invokes one registered method.
type ServiceDescriptor struct {
	Method     string
	Params     []ParamDesc
	Callback   Callback
	ReturnType message.ParamType
}

// ValidateParams reports whether params contains every declared parameter
// with the declared type. Extra keys in params are ignored.
func (sd *ServiceDescriptor) ValidateParams(params map[string]any) bool {
	for _, p := range sd.Params {
		v, ok := params[p.Name]
		if !ok {
			return false
		}
		if !checkType(v, p.Type) {
			return false
		}
	}
	return true
}

// Invoke runs the callback and validates the return value's type against
// ReturnType. Returns the result and an error describing whichever step
// failed.
func (sd *ServiceDescriptor) Invoke(params map[string]any) (any, error) {
	result, err := sd.Callback(params)
	if err != nil {
		return nil, fmt.Errorf("rpcrouter: callback for %s failed: %w", sd.Method, err)
	}
	if !checkType(result, sd.ReturnType) {
		return nil, fmt.Errorf("rpcrouter: %s returned a value not matching the declared return type", sd.Method)
	}
	return result, nil
}

// checkType reports whether v (as decoded by encoding/json into `any`)
// matches ptype.
func checkType(v any, ptype message.ParamType) bool {
	switch ptype {
	case message.Bool:
		_, ok := v.(bool)
		return ok
	case message.Integral:
		n, ok := v.(float64)
		return ok && n == float64(int64(n))
	case message.Numeric:
		_, ok := v.(float64)
		return ok
	case message.String:
		_, ok := v.(string)
		return ok
	case message.Array:
		_, ok := v.([]any)
		return ok
	case message.Object:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// Builder assembles a ServiceDescriptor field by field, kept separate from
// ServiceDescriptor itself so construction — which isn't safe to mutate
// concurrently — is distinct from the descriptor's read-mostly
// validate/invoke surface used at call time.
type Builder struct {
	method     string
	params     []ParamDesc
	callback   Callback
	returnType message.ParamType
}

// NewBuilder starts building a ServiceDescriptor for method.
func NewBuilder(method string) *Builder {
	return &Builder{method: method}
}

// Param declares one expected parameter.
func (b *Builder) Param(name string, t message.ParamType) *Builder {
	b.params = append(b.params, ParamDesc{Name: name, Type: t})
	return b
}

// Handle sets the callback.
func (b *Builder) Handle(cb Callback) *Builder {
	b.callback = cb
	return b
}

// Returns sets the declared return type.
func (b *Builder) Returns(t message.ParamType) *Builder {
	b.returnType = t
	return b
}

// Build produces the finished ServiceDescriptor.
func (b *Builder) Build() *ServiceDescriptor {
	return &ServiceDescriptor{
		Method:     b.method,
		Params:     b.params,
		Callback:   b.callback,
		ReturnType: b.returnType,
	}
}
