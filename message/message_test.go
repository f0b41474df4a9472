package message

import "testing"

func TestReqRPCValidation(t *testing.T) {
	req := &ReqRPCMessage{Method: "Add", Params: []byte(`{"num1":1,"num2":2}`)}
	if !req.IsValid() {
		t.Fatal("expected valid request")
	}
	req.Method = ""
	if req.IsValid() {
		t.Fatal("expected invalid request with no method")
	}
}

func TestReqRPCSerializeRoundTrip(t *testing.T) {
	req := &ReqRPCMessage{Method: "Add", Params: []byte(`{"num1":1,"num2":2}`)}
	req.SetID("abc-1")

	s, err := req.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got := &ReqRPCMessage{}
	if !got.Deserialize([]byte(s)) {
		t.Fatal("deserialize failed")
	}
	if got.Method != "Add" {
		t.Fatalf("method = %q, want Add", got.Method)
	}
}

func TestReqTopicPublishRequiresMsg(t *testing.T) {
	req := &ReqTopicMessage{TopicKey: "news", Optype: TopicPublish}
	if req.IsValid() {
		t.Fatal("expected invalid: publish with no message")
	}
	req.TopicMsg = "hello"
	if !req.IsValid() {
		t.Fatal("expected valid publish")
	}
}

func TestReqTopicSubscribeDoesNotRequireMsg(t *testing.T) {
	req := &ReqTopicMessage{TopicKey: "news", Optype: TopicSubscribe}
	if !req.IsValid() {
		t.Fatal("expected valid subscribe with no message")
	}
}

func TestReqServiceDiscoveryHasNoHost(t *testing.T) {
	req := &ReqServiceMessage{Method: "Add", Optype: ServiceDiscovery}
	if !req.IsValid() {
		t.Fatal("expected valid discovery request without host")
	}
}

func TestReqServiceRegistryRequiresHost(t *testing.T) {
	req := &ReqServiceMessage{Method: "Add", Optype: ServiceRegistry}
	if req.IsValid() {
		t.Fatal("expected invalid registry request without host")
	}
	req.Host = &Host{IP: "127.0.0.1", Port: 9090}
	if !req.IsValid() {
		t.Fatal("expected valid registry request with host")
	}
}

func TestNewByKind(t *testing.T) {
	if m := New(ReqRPC); m.Kind() != ReqRPC {
		t.Fatalf("New(ReqRPC) kind = %v", m.Kind())
	}
	if m := New(RspService); m.Kind() != RspService {
		t.Fatalf("New(RspService) kind = %v", m.Kind())
	}
}
