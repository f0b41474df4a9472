package codec

import "testing"

func TestJSONCodecRoundTrip(t *testing.T) {
	c := GetCodec(CodecTypeJSON)
	env := &Envelope{Method: "Arith.Add", Payload: []byte(`{"result":8}`)}

	data, err := c.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got := &Envelope{}
	if err := c.Decode(data, got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Method != env.Method {
		t.Fatalf("method = %q, want %q", got.Method, env.Method)
	}
}

func TestBinaryCodecRoundTrip(t *testing.T) {
	c := GetCodec(CodecTypeBinary)
	env := &Envelope{Method: "Arith.Add", Payload: []byte(`{"result":8}`), Error: "boom"}

	data, err := c.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got := &Envelope{}
	if err := c.Decode(data, got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Method != env.Method || string(got.Payload) != string(env.Payload) || got.Error != env.Error {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, env)
	}
}

func TestGetCodecDefaultsToBinary(t *testing.T) {
	c := GetCodec(CodecType(99))
	if c.Type() != CodecTypeBinary {
		t.Fatalf("unknown codec type should fall back to binary, got %v", c.Type())
	}
}
