// Package protocol implements the zrpc frame codec: length-value framing
// over a reliable byte stream, with a polymorphic message.Message body.
//
// Frame format, all integers big-endian 4-byte:
//
//	| total_len (4) | kind (4) | id_len (4) | id (id_len) | body (total_len-8-id_len) |
//
// total_len counts every byte after itself: kind + id_len + id + body.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"zrpc/message"
)

const (
	lenFieldSize = 4
	// MaxFrameSize bounds how much we'll buffer while waiting for a complete
	// frame with no progress — protection against unbounded garbage on the
	// wire.
	MaxFrameSize = 1 << 20 // 1 MiB
)

var (
	// ErrIncomplete signals the buffer doesn't yet hold a full frame.
	ErrIncomplete = errors.New("protocol: incomplete frame")
	// ErrTooLarge signals the buffer exceeded MaxFrameSize with no complete
	// frame in sight; the caller must close the connection.
	ErrTooLarge = errors.New("protocol: frame exceeds maximum size with no progress")
)

// CanProcess reports whether buf holds at least one complete frame.
func CanProcess(buf []byte) bool {
	if len(buf) < lenFieldSize {
		return false
	}
	totalLen := binary.BigEndian.Uint32(buf[:lenFieldSize])
	return uint64(len(buf)) >= uint64(lenFieldSize)+uint64(totalLen)
}

// Encode produces the bytes of exactly one frame for msg.
func Encode(msg message.Message) ([]byte, error) {
	body, err := msg.Serialize()
	if err != nil {
		return nil, fmt.Errorf("protocol: encode body: %w", err)
	}

	id := msg.ID()
	bodyBytes := []byte(body)
	totalLen := 4 /*kind*/ + 4 /*id_len*/ + len(id) + len(bodyBytes)

	buf := make([]byte, lenFieldSize+totalLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(totalLen))
	binary.BigEndian.PutUint32(buf[4:8], uint32(msg.Kind()))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(id)))
	copy(buf[12:12+len(id)], id)
	copy(buf[12+len(id):], bodyBytes)

	return buf, nil
}

// Decode consumes exactly one frame from the front of buf and returns the
// decoded message plus the number of bytes consumed. Callers must have
// already confirmed CanProcess(buf).
//
// Decode fails with an error if kind is unrecognized, id_len is implausible
// relative to total_len, or the body is not valid JSON for that kind — in
// every such case the caller must close the connection.
func Decode(buf []byte) (message.Message, int, error) {
	if len(buf) < lenFieldSize {
		return nil, 0, ErrIncomplete
	}
	totalLen := binary.BigEndian.Uint32(buf[:lenFieldSize])
	frameEnd := lenFieldSize + int(totalLen)
	if len(buf) < frameEnd {
		return nil, 0, ErrIncomplete
	}
	if totalLen < 8 {
		return nil, 0, fmt.Errorf("protocol: total_len %d too small for kind+id_len", totalLen)
	}

	frame := buf[lenFieldSize:frameEnd]
	kind := message.Kind(binary.BigEndian.Uint32(frame[0:4]))
	idLen := binary.BigEndian.Uint32(frame[4:8])

	if uint64(idLen) > uint64(totalLen)-8 {
		return nil, 0, fmt.Errorf("protocol: id_len %d implausible for total_len %d", idLen, totalLen)
	}

	idStart := 8
	idEnd := idStart + int(idLen)
	id := string(frame[idStart:idEnd])
	body := frame[idEnd:]

	msg := message.New(kind)
	if msg == nil {
		return nil, 0, fmt.Errorf("protocol: unrecognized kind %d", kind)
	}
	if !msg.Deserialize(body) {
		return nil, 0, fmt.Errorf("protocol: body is not valid JSON for kind %v", kind)
	}
	msg.SetID(id)

	return msg, frameEnd, nil
}

// DecodeAll drains every complete frame held in buf in a single pass,
// returning the decoded messages and the unconsumed remainder. If buf
// exceeds MaxFrameSize with no complete frame, it returns ErrTooLarge and
// the caller must close the connection.
func DecodeAll(buf []byte) ([]message.Message, []byte, error) {
	var msgs []message.Message
	for CanProcess(buf) {
		msg, n, err := Decode(buf)
		if err != nil {
			return msgs, buf, err
		}
		msgs = append(msgs, msg)
		buf = buf[n:]
	}
	if len(buf) > MaxFrameSize {
		return msgs, buf, ErrTooLarge
	}
	return msgs, buf, nil
}
