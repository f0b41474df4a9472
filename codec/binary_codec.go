package codec

import (
	"encoding/binary"
)

// BinaryCodec implements a custom binary serialization for Envelope.
//
// Binary format:
//
//	┌─────────────┬──────────────┬──────────────┬─────────┬────────────┬───────┐
//	│MethodLen(2) │ Method bytes │ PayloadLen(4)│ Payload │ ErrLen(2)  │ Error │
//	└─────────────┴──────────────┴──────────────┴─────────┴────────────┴───────┘
//
// The payload itself is kept as raw bytes (already JSON from the wire). The
// gain over JSONCodec comes from encoding the outer Envelope fields in
// binary instead of JSON, avoiding field-name and string-escaping overhead —
// useful since internal/metrics may keep thousands of these in its ring
// buffer.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v *Envelope) ([]byte, error) {
	total := 2 + len(v.Method) + 4 + len(v.Payload) + 2 + len(v.Error)
	buf := make([]byte, total)

	offset := 0

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(v.Method)))
	offset += 2
	copy(buf[offset:offset+len(v.Method)], []byte(v.Method))
	offset += len(v.Method)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(v.Payload)))
	offset += 4
	copy(buf[offset:offset+len(v.Payload)], v.Payload)
	offset += len(v.Payload)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(v.Error)))
	offset += 2
	copy(buf[offset:offset+len(v.Error)], []byte(v.Error))

	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v *Envelope) error {
	offset := 0

	strLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	v.Method = string(data[offset : offset+int(strLen)])
	offset += int(strLen)

	payloadLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	v.Payload = make([]byte, payloadLen)
	copy(v.Payload, data[offset:offset+int(payloadLen)])
	offset += int(payloadLen)

	errLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	v.Error = string(data[offset : offset+int(errLen)])

	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
