// Package pubsub implements the server-side publish/subscribe broker
// (PSManager) and the client-side TopicManager: a dispatcher handler plus
// a pair of mutex-protected indexes, matching registry's shape.
package pubsub

import (
	"sync"

	"zrpc/dispatch"
	"zrpc/internal/metrics"
	"zrpc/message"
)

// topic is a topic name plus the set of connections subscribed to it.
type topic struct {
	name        string
	subscribers map[dispatch.Conn]struct{}
}

// subscriber is one connection plus the set of topic names it has
// subscribed to. Mirrors the shape of registry.Provider/Discoverer.
type subscriber struct {
	conn   dispatch.Conn
	topics map[string]struct{}
}

// PSManager is the broker: the dispatcher handler registered for REQ_TOPIC.
// Topic and subscriber indexes are kept consistent under a single lock.
type PSManager struct {
	mu          sync.Mutex
	topics      map[string]*topic
	subscribers map[dispatch.Conn]*subscriber
}

// NewPSManager creates an empty broker.
func NewPSManager() *PSManager {
	return &PSManager{
		topics:      make(map[string]*topic),
		subscribers: make(map[dispatch.Conn]*subscriber),
	}
}

// OnRequest handles a REQ_TOPIC message by optype.
func (p *PSManager) OnRequest(conn dispatch.Conn, req *message.ReqTopicMessage) {
	switch req.Optype {
	case message.TopicCreate:
		p.create(req.TopicKey)
		p.respond(conn, req, message.OK)

	case message.TopicRemove:
		p.remove(req.TopicKey)
		p.respond(conn, req, message.OK)

	case message.TopicSubscribe:
		if !p.subscribe(conn, req.TopicKey) {
			p.respond(conn, req, message.NotFoundTopic)
			return
		}
		p.respond(conn, req, message.OK)

	case message.TopicCancel:
		p.cancel(conn, req.TopicKey)
		p.respond(conn, req, message.OK)

	case message.TopicPublish:
		if !p.publish(req) {
			p.respond(conn, req, message.NotFoundTopic)
			return
		}
		p.respond(conn, req, message.OK)

	default:
		p.respond(conn, req, message.InvalidOptype)
	}
}

// create inserts topic if absent; idempotent.
func (p *PSManager) create(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.topics[key]; !ok {
		p.topics[key] = &topic{name: key, subscribers: make(map[dispatch.Conn]struct{})}
	}
}

// remove erases key from every subscriber's set before removing the topic
// itself; OK even if the topic is absent.
func (p *PSManager) remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[key]
	if !ok {
		return
	}
	for conn := range t.subscribers {
		if sub, ok := p.subscribers[conn]; ok {
			delete(sub.topics, key)
		}
	}
	delete(p.topics, key)
}

// subscribe finds-or-creates the subscriber record for conn and links it to
// key; reports false if key does not exist (NOT_FOUND_TOPIC).
func (p *PSManager) subscribe(conn dispatch.Conn, key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[key]
	if !ok {
		return false
	}
	sub, ok := p.subscribers[conn]
	if !ok {
		sub = &subscriber{conn: conn, topics: make(map[string]struct{})}
		p.subscribers[conn] = sub
	}
	sub.topics[key] = struct{}{}
	t.subscribers[conn] = struct{}{}
	return true
}

// cancel removes the subscriber/topic link in both directions, silently
// skipping whichever side is already missing.
func (p *PSManager) cancel(conn dispatch.Conn, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[key]; ok {
		delete(t.subscribers, conn)
	}
	if sub, ok := p.subscribers[conn]; ok {
		delete(sub.topics, key)
	}
}

// publish forwards req verbatim to every subscriber connection present at
// the moment the fan-out snapshot is taken. Reports false if the topic does
// not exist (NOT_FOUND_TOPIC).
func (p *PSManager) publish(req *message.ReqTopicMessage) bool {
	p.mu.Lock()
	t, ok := p.topics[req.TopicKey]
	if !ok {
		p.mu.Unlock()
		return false
	}
	targets := make([]dispatch.Conn, 0, len(t.subscribers))
	for conn := range t.subscribers {
		targets = append(targets, conn)
	}
	p.mu.Unlock()

	for _, conn := range targets {
		push := &message.ReqTopicMessage{TopicKey: req.TopicKey, Optype: message.TopicPublish, TopicMsg: req.TopicMsg}
		push.SetID(req.ID())
		if sender, ok := conn.(interface{ Send(message.Message) error }); ok {
			sender.Send(push)
		}
	}
	metrics.RecordFanout(len(targets))
	return true
}

func (p *PSManager) respond(conn dispatch.Conn, req *message.ReqTopicMessage, rcode message.RCode) {
	sender, ok := conn.(interface{ Send(message.Message) error })
	if !ok {
		return
	}
	rsp := &message.RspTopicMessage{RCode: rcode}
	rsp.SetID(req.ID())
	sender.Send(rsp)
}

// OnConnectionClosed finds the subscriber for the closing connection; for
// each topic it subscribed to, removes it from that topic; then drops the
// subscriber record.
func (p *PSManager) OnConnectionClosed(conn dispatch.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subscribers[conn]
	if !ok {
		return
	}
	for key := range sub.topics {
		if t, ok := p.topics[key]; ok {
			delete(t.subscribers, conn)
		}
	}
	delete(p.subscribers, conn)
}
