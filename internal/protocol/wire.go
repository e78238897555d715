package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Wire framing: a 4-byte big-endian payload length followed by a JSON
// payload. Frames are capped so a bad peer cannot make us allocate
// unboundedly.
const MaxFrameLen = 4 * 1024 * 1024 // 4 MiB

// FrameLengthError reports a declared frame length outside (0, MaxFrameLen].
type FrameLengthError int

func (e FrameLengthError) Error() string {
	return fmt.Sprintf("invalid frame length: %d", int(e))
}

// EncodeFrame serializes v and prepends the length prefix.
func EncodeFrame(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxFrameLen {
		return nil, FrameLengthError(len(payload))
	}
	out := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	return append(out, payload...), nil
}

func WriteMessage(w io.Writer, v any) error {
	frame, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads one frame and returns its payload bytes together with
// the decoded envelope; callers unmarshal the concrete message themselves.
func ReadMessage(r io.Reader) ([]byte, BaseMessage, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, BaseMessage{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > MaxFrameLen {
		return nil, BaseMessage{}, FrameLengthError(n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, BaseMessage{}, err
	}
	base, err := DecodeBase(payload)
	if err != nil {
		return nil, BaseMessage{}, err
	}
	return payload, base, nil
}
