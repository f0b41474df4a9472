package client

import (
	"zrpc/conn"
	"zrpc/dispatch"
	"zrpc/message"
	"zrpc/pubsub"
	"zrpc/requestor"
)

// TopicClient is a connection to a broker; it wraps pubsub.TopicManager.
type TopicClient struct {
	conn    *conn.Connection
	manager *pubsub.TopicManager
}

// NewTopicClient dials addr and prepares a connection dedicated to pub/sub.
func NewTopicClient(addr string) (*TopicClient, error) {
	r := requestor.New()
	d := dispatch.New()

	tc := &TopicClient{manager: pubsub.NewTopicManager(r, nil)}

	dispatch.Register(d, message.RspTopic, r.OnTopicResponse)
	dispatch.Register(d, message.ReqTopic, tc.manager.OnPublish)

	c, err := dial(addr, d)
	if err != nil {
		return nil, err
	}
	tc.conn = c
	tc.manager.BindConnection(c)
	c.OnClose(func(*conn.Connection) { r.CloseConnection(c) })
	return tc, nil
}

// Create creates topic key.
func (tc *TopicClient) Create(key string) error { return tc.manager.Create(key) }

// Remove removes topic key.
func (tc *TopicClient) Remove(key string) error { return tc.manager.Remove(key) }

// Subscribe subscribes to key, invoking cb for every PUBLISH push.
func (tc *TopicClient) Subscribe(key string, cb pubsub.SubscribeCallback) error {
	return tc.manager.Subscribe(key, cb)
}

// CancelSubscribe cancels a prior Subscribe.
func (tc *TopicClient) CancelSubscribe(key string) error { return tc.manager.CancelSubscribe(key) }

// Publish publishes topicMsg to key.
func (tc *TopicClient) Publish(key, topicMsg string) error { return tc.manager.Publish(key, topicMsg) }

// Close tears down the broker connection.
func (tc *TopicClient) Close() error { return tc.conn.Close() }
