package pubsub

import (
	"testing"

	"zrpc/message"
	"zrpc/requestor"
)

// loopbackSender immediately answers every ReqTopicMessage it receives with
// a RspTopicMessage carrying rcode via the given requestor, simulating a broker one
// network hop away without needing real connections.
type loopbackSender struct {
	r       *requestor.Requestor
	rcode   message.RCode
	lastReq *message.ReqTopicMessage
}

func (s *loopbackSender) Send(msg message.Message) error {
	req := msg.(*message.ReqTopicMessage)
	s.lastReq = req
	rsp := &message.RspTopicMessage{RCode: s.rcode}
	rsp.SetID(req.ID())
	s.r.OnTopicResponse(nil, rsp)
	return nil
}

func TestTopicManagerSubscribeDeliversPublishToCallback(t *testing.T) {
	r := requestor.New()
	sender := &loopbackSender{r: r, rcode: message.OK}
	tm := NewTopicManager(r, sender)

	var got string
	err := tm.Subscribe("hello", func(key, msg string) { got = msg })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	push := &message.ReqTopicMessage{TopicKey: "hello", Optype: message.TopicPublish, TopicMsg: "world"}
	tm.OnPublish(nil, push)

	if got != "world" {
		t.Fatalf("callback got %q, want world", got)
	}
}

func TestTopicManagerSubscribeFailureRemovesCallback(t *testing.T) {
	r := requestor.New()
	sender := &loopbackSender{r: r, rcode: message.NotFoundTopic}
	tm := NewTopicManager(r, sender)

	err := tm.Subscribe("ghost", func(key, msg string) {})
	if err == nil {
		t.Fatal("expected subscribe to fail")
	}
	if tm.getCallback("ghost") != nil {
		t.Fatal("expected callback to be rolled back after failed subscribe")
	}
}

func TestTopicManagerUnknownTopicPublishDoesNotPanic(t *testing.T) {
	r := requestor.New()
	sender := &loopbackSender{r: r, rcode: message.OK}
	tm := NewTopicManager(r, sender)

	push := &message.ReqTopicMessage{TopicKey: "nope", Optype: message.TopicPublish, TopicMsg: "x"}
	tm.OnPublish(nil, push)
}

func TestTopicManagerPublishSendsTopicMsg(t *testing.T) {
	r := requestor.New()
	sender := &loopbackSender{r: r, rcode: message.OK}
	tm := NewTopicManager(r, sender)

	if err := tm.Publish("hello", "payload"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if sender.lastReq.TopicMsg != "payload" {
		t.Fatalf("lastReq.TopicMsg = %q, want payload", sender.lastReq.TopicMsg)
	}
}
