package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
)

func TestWire_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	hello := HelloMsg{
		Type:            TypeHello,
		ProtocolVersion: Version,
		RequestID:       uuid.New(),
		ClientName:      "tester",
	}
	if err := WriteMessage(&buf, hello); err != nil {
		t.Fatalf("write: %v", err)
	}

	payload, base, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if base.Type != TypeHello || base.ProtocolVersion != Version {
		t.Fatalf("envelope: %+v", base)
	}
	var got HelloMsg
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != hello {
		t.Fatalf("round trip mismatch:\nhave %+v\nwant %+v", got, hello)
	}
	if buf.Len() != 0 {
		t.Fatalf("trailing bytes after one frame: %d", buf.Len())
	}
}

func TestWire_MultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		if err := WriteMessage(&buf, ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: ErrInternal}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, base, err := ReadMessage(&buf); err != nil || base.Type != TypeError {
			t.Fatalf("frame %d: %+v %v", i, base, err)
		}
	}
}

func TestWire_RejectsBadLengths(t *testing.T) {
	zero := make([]byte, 4)
	if _, _, err := ReadMessage(bytes.NewReader(zero)); !isFrameLengthError(err) {
		t.Fatalf("zero length: %v", err)
	}

	huge := make([]byte, 4)
	binary.BigEndian.PutUint32(huge, MaxFrameLen+1)
	if _, _, err := ReadMessage(bytes.NewReader(huge)); !isFrameLengthError(err) {
		t.Fatalf("oversized length: %v", err)
	}
}

func TestWire_ShortReads(t *testing.T) {
	if _, _, err := ReadMessage(bytes.NewReader(nil)); err != io.EOF {
		t.Fatalf("empty stream: %v", err)
	}
	if _, _, err := ReadMessage(bytes.NewReader([]byte{0, 0})); err != io.ErrUnexpectedEOF {
		t.Fatalf("truncated prefix: %v", err)
	}

	frame, err := EncodeFrame(HelloMsg{Type: TypeHello, ProtocolVersion: Version})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, _, err := ReadMessage(bytes.NewReader(frame[:len(frame)-1])); err != io.ErrUnexpectedEOF {
		t.Fatalf("truncated payload: %v", err)
	}
}

func TestWire_RejectsNonJSONPayload(t *testing.T) {
	frame := make([]byte, 4, 7)
	binary.BigEndian.PutUint32(frame, 3)
	frame = append(frame, "}{!"...)
	if _, _, err := ReadMessage(bytes.NewReader(frame)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func isFrameLengthError(err error) bool {
	var fe FrameLengthError
	return errors.As(err, &fe)
}
