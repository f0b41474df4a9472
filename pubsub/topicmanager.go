package pubsub

import (
	"fmt"
	"sync"

	"zrpc/dispatch"
	"zrpc/internal/zlog"
	"zrpc/message"
	"zrpc/requestor"
)

// SubscribeCallback receives (topicKey, topicMsg) for every PUBLISH push
// delivered on a subscribed topic.
type SubscribeCallback func(topicKey, topicMsg string)

// TopicManager is the client-side mirror of PSManager: it sends
// CREATE/REMOVE/SUBSCRIBE/CANCEL/PUBLISH requests through the requestor and
// maintains its own topic-name → callback map for inbound PUBLISH pushes.
type TopicManager struct {
	requestor *requestor.Requestor
	conn      requestor.Sender

	mu        sync.Mutex
	callbacks map[string]SubscribeCallback
}

// NewTopicManager creates a TopicManager bound to one connection. conn may
// be nil if the connection isn't available yet — register OnPublish with a
// dispatcher first (it doesn't read conn), then call BindConnection once
// the connection exists.
func NewTopicManager(r *requestor.Requestor, conn requestor.Sender) *TopicManager {
	return &TopicManager{
		requestor: r,
		conn:      conn,
		callbacks: make(map[string]SubscribeCallback),
	}
}

// BindConnection sets the connection used for outgoing requests. OnPublish
// does not need it, so it's safe to bind after the dispatcher handler is
// already registered.
func (m *TopicManager) BindConnection(conn requestor.Sender) {
	m.conn = conn
}

// Create issues a CREATE request for key.
func (m *TopicManager) Create(key string) error {
	return m.request(key, message.TopicCreate, "")
}

// Remove issues a REMOVE request for key.
func (m *TopicManager) Remove(key string) error {
	return m.request(key, message.TopicRemove, "")
}

// Subscribe installs cb before sending the SUBSCRIBE request; if the
// request fails, cb is removed again so no orphan entry persists.
func (m *TopicManager) Subscribe(key string, cb SubscribeCallback) error {
	m.setCallback(key, cb)
	if err := m.request(key, message.TopicSubscribe, ""); err != nil {
		m.removeCallback(key)
		return err
	}
	return nil
}

// CancelSubscribe removes the local callback and issues a CANCEL request.
func (m *TopicManager) CancelSubscribe(key string) error {
	m.removeCallback(key)
	return m.request(key, message.TopicCancel, "")
}

// Publish issues a PUBLISH request carrying topicMsg.
func (m *TopicManager) Publish(key, topicMsg string) error {
	return m.request(key, message.TopicPublish, topicMsg)
}

func (m *TopicManager) request(key string, optype message.TopicOptype, topicMsg string) error {
	req := &message.ReqTopicMessage{TopicKey: key, Optype: optype}
	if optype == message.TopicPublish {
		req.TopicMsg = topicMsg
	}

	rsp, err := m.requestor.SendBlocking(m.conn, req)
	if err != nil {
		return err
	}
	topicRsp, ok := rsp.(*message.RspTopicMessage)
	if !ok {
		return fmt.Errorf("pubsub: unexpected response type %T", rsp)
	}
	if topicRsp.RCode != message.OK {
		return fmt.Errorf("pubsub: request failed: %s", topicRsp.RCode)
	}
	return nil
}

// OnPublish is the dispatcher handler for inbound REQ_TOPIC: the broker's
// PUBLISH push, delivered with the same kind publishers use to send it.
func (m *TopicManager) OnPublish(conn dispatch.Conn, msg *message.ReqTopicMessage) {
	if msg.Optype != message.TopicPublish {
		zlog.Errorf("pubsub: received non-PUBLISH REQ_TOPIC on push handler, optype=%s", msg.Optype)
		return
	}
	cb := m.getCallback(msg.TopicKey)
	if cb == nil {
		zlog.Errorf("pubsub: received PUBLISH for topic %q with no registered callback", msg.TopicKey)
		return
	}
	cb(msg.TopicKey, msg.TopicMsg)
}

func (m *TopicManager) setCallback(key string, cb SubscribeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.callbacks[key]; !ok {
		m.callbacks[key] = cb
	}
}

func (m *TopicManager) removeCallback(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.callbacks, key)
}

func (m *TopicManager) getCallback(key string) SubscribeCallback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callbacks[key]
}
