package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`)

	var buf bytes.Buffer
	if err := Encode(&buf, KindRequest, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(body) {
		t.Fatalf("frame length: got %d, want %d", buf.Len(), HeaderSize+len(body))
	}

	hdr, got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if hdr.Kind != KindRequest {
		t.Errorf("Kind mismatch: got %s, want %s", hdr.Kind, KindRequest)
	}
	if hdr.BodyLen != uint32(len(body)) {
		t.Errorf("BodyLen mismatch: got %d, want %d", hdr.BodyLen, len(body))
	}
	if !bytes.Equal(got, body) {
		t.Errorf("Body mismatch: got %s, want %s", got, body)
	}
}

func TestDecodeBackToBackFrames(t *testing.T) {
	var buf bytes.Buffer
	frames := []struct {
		kind Kind
		body string
	}{
		{KindRequest, `{"id":1}`},
		{KindResponse, `{"id":1,"result":5}`},
		{KindRequest, ``},
	}
	for _, f := range frames {
		if err := Encode(&buf, f.kind, []byte(f.body)); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}
	for i, f := range frames {
		hdr, body, err := Decode(&buf)
		if err != nil {
			t.Fatalf("frame %d: Decode failed: %v", i, err)
		}
		if hdr.Kind != f.kind || string(body) != f.body {
			t.Errorf("frame %d: got (%s, %q), want (%s, %q)", i, hdr.Kind, body, f.kind, f.body)
		}
	}
	if _, _, err := Decode(&buf); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("POST / HTTP/1.1\r\n")

	_, _, err := Decode(&buf)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	frame := []byte{MagicByte1, MagicByte2, MagicByte3, 0xFF, byte(KindRequest), 0, 0, 0, 0}
	_, _, err := Decode(bytes.NewReader(frame))
	if !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestDecodeInvalidKind(t *testing.T) {
	frame := []byte{MagicByte1, MagicByte2, MagicByte3, Version, 7, 0, 0, 0, 0}
	_, _, err := Decode(bytes.NewReader(frame))
	if !errors.Is(err, ErrBadKind) {
		t.Fatalf("expected ErrBadKind, got %v", err)
	}
}

func TestDecodeOversizedBody(t *testing.T) {
	frame := []byte{MagicByte1, MagicByte2, MagicByte3, Version, byte(KindResponse), 0xFF, 0xFF, 0xFF, 0xFF}
	_, _, err := Decode(bytes.NewReader(frame))
	if !errors.Is(err, ErrBodyTooLong) {
		t.Fatalf("expected ErrBodyTooLong, got %v", err)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, KindResponse, []byte("hello world")); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	_, _, err := Decode(bytes.NewReader(truncated))
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecodeLargeBody(t *testing.T) {
	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, KindResponse, largeBody); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	_, got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got, largeBody) {
		t.Errorf("large body mismatch")
	}
}
