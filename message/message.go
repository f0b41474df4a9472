// Package message defines the wire message taxonomy exchanged between zrpc
// peers: request/response kinds, body schemas, and validation.
package message

import "encoding/json"

// Message is the polymorphic envelope every concrete message kind implements.
// Body encoding is UTF-8 JSON text; Serialize/Deserialize round-trip exactly
// the body (the frame's id and kind travel alongside it, see the protocol
// package's frame format).
type Message interface {
	Kind() Kind
	ID() string
	SetID(id string)
	Serialize() (string, error)
	Deserialize(data []byte) bool
	IsValid() bool
}

// base carries the id every message kind shares; concrete types embed it.
type base struct {
	id string
}

func (b *base) ID() string      { return b.id }
func (b *base) SetID(id string) { b.id = id }

// New constructs a zero-value concrete message for the given kind, used by
// the codec when decoding a frame whose kind is known but whose body hasn't
// been parsed yet.
func New(kind Kind) Message {
	switch kind {
	case ReqRPC:
		return &ReqRPCMessage{}
	case RspRPC:
		return &RspRPCMessage{}
	case ReqTopic:
		return &ReqTopicMessage{}
	case RspTopic:
		return &RspTopicMessage{}
	case ReqService:
		return &ReqServiceMessage{}
	case RspService:
		return &RspServiceMessage{}
	default:
		return nil
	}
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
