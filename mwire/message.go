package mwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLength is the maximum length, in bytes, of a single length-delimited
// frame on the wire, per spec.md §6 ("length-delimited frames (max
// MAX_FRAME_LENGTH)").
const MaxFrameLength = 1 << 20 // 1 MiB

// UnknownMessageError is returned when a frame's MessageType does not match
// any known FriendMessage variant.
type UnknownMessageError struct {
	Type MessageType
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("unable to parse message of unknown type: %v", e.Type)
}

func makeEmptyMessage(t MessageType) (Message, error) {
	switch t {
	case MsgMoveTokenRequest:
		return &MoveTokenRequest{}, nil
	case MsgInconsistencyError:
		return &InconsistencyErrorMsg{}, nil
	default:
		return nil, &UnknownMessageError{Type: t}
	}
}

// WriteMessage serializes msg as a length-delimited frame: a 4-byte
// big-endian length, a 2-byte message type, then the payload.
func WriteMessage(w io.Writer, msg Message) (int, error) {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return 0, err
	}

	body := payload.Len() + 2 // + message type
	if body > MaxFrameLength {
		return 0, fmt.Errorf("message payload too large: %d bytes exceeds MAX_FRAME_LENGTH %d",
			body, MaxFrameLength)
	}

	var header [6]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(body))
	binary.BigEndian.PutUint16(header[4:6], uint16(msg.MsgType()))

	n, err := w.Write(header[:])
	if err != nil {
		return n, err
	}
	m, err := w.Write(payload.Bytes())
	return n + m, err
}

// ReadMessage reads and decodes the next length-delimited FriendMessage
// frame from r.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if frameLen > MaxFrameLength {
		return nil, fmt.Errorf("frame length %d exceeds MAX_FRAME_LENGTH %d", frameLen, MaxFrameLength)
	}
	if frameLen < 2 {
		return nil, fmt.Errorf("frame too short to contain a message type: %d", frameLen)
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}

	msgType := MessageType(binary.BigEndian.Uint16(frame[:2]))
	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(bytes.NewReader(frame[2:])); err != nil {
		return nil, err
	}
	return msg, nil
}
