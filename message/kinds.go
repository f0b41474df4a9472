// Package message defines the wire message taxonomy exchanged between zrpc
// peers: request/response kinds, body schemas, and validation.
package message

// Kind identifies the concrete message type carried by a frame. It is
// transmitted on the wire as a 4-byte big-endian integer (see the protocol
// package's frame format).
type Kind uint32

const (
	ReqRPC Kind = iota
	RspRPC
	ReqTopic
	RspTopic
	ReqService
	RspService
)

func (k Kind) String() string {
	switch k {
	case ReqRPC:
		return "REQ_RPC"
	case RspRPC:
		return "RSP_RPC"
	case ReqTopic:
		return "REQ_TOPIC"
	case RspTopic:
		return "RSP_TOPIC"
	case ReqService:
		return "REQ_SERVICE"
	case RspService:
		return "RSP_SERVICE"
	default:
		return "UNKNOWN"
	}
}

// RCode is the response status carried in rcode fields. Numeric encoding is a
// stable dense sequence starting at 0.
type RCode int

const (
	OK RCode = iota
	ParseFailed
	ErrMsgType
	InvalidMsg
	Disconnected
	InvalidParams
	NotFoundService
	InvalidOptype
	NotFoundTopic
	InternalError
)

func (c RCode) String() string {
	switch c {
	case OK:
		return "OK"
	case ParseFailed:
		return "PARSE_FAILED"
	case ErrMsgType:
		return "ERROR_MSGTYPE"
	case InvalidMsg:
		return "INVALID_MSG"
	case Disconnected:
		return "DISCONNECTED"
	case InvalidParams:
		return "INVALID_PARAMS"
	case NotFoundService:
		return "NOT_FOUND_SERVICE"
	case InvalidOptype:
		return "INVALID_OPTYPE"
	case NotFoundTopic:
		return "NOT_FOUND_TOPIC"
	case InternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// TopicOptype is the operation requested by a REQ_TOPIC message.
type TopicOptype int

const (
	TopicCreate TopicOptype = iota
	TopicRemove
	TopicSubscribe
	TopicCancel
	TopicPublish
)

// ServiceOptype is the operation requested by a REQ_SERVICE message.
type ServiceOptype int

const (
	ServiceRegistry ServiceOptype = iota
	ServiceOnline
	ServiceOffline
	ServiceDiscovery
	ServiceUnknown
)

// ParamType tags an RPC parameter or return value's expected JSON shape.
type ParamType int

const (
	Bool ParamType = iota
	Integral
	Numeric
	String
	Array
	Object
)
