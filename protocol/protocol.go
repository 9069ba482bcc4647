// Package protocol frames JSON-RPC envelopes on a byte stream.
//
// A stream carries no message boundaries, so every envelope travels behind a
// fixed 9-byte header holding its length. The receiver reads the header,
// then exactly that many body bytes.
//
// Frame format:
//
//	0      3  4  5         9
//	┌──────┬──┬──┬─────────┬───────────────┐
//	│magic │v │k │ bodyLen │    body ...    │
//	│ lrp  │01│  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴─────────┴───────────────┘
//
// The kind byte says whether the body is a request (or notification) or a
// response, so the receiving side can route it without parsing.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic bytes "lrp" identify a lean-rpc stream and reject stray clients
// (an HTTP request hitting the framed port, for example).
const (
	MagicByte1 byte = 0x6c // 'l'
	MagicByte2 byte = 0x72 // 'r'
	MagicByte3 byte = 0x70 // 'p'
	Version    byte = 0x01
	HeaderSize int  = 9 // 3 (magic) + 1 (version) + 1 (kind) + 4 (bodyLen)

	// MaxBodyLen bounds a single envelope.
	MaxBodyLen uint32 = 16 << 20
)

// Kind tells requests from responses.
type Kind byte

const (
	KindRequest  Kind = 0 // call or notification, consumed by a server
	KindResponse Kind = 1 // result or fault, consumed by a client
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

var (
	ErrBadMagic    = errors.New("protocol: invalid magic number")
	ErrBadVersion  = errors.New("protocol: unsupported version")
	ErrBadKind     = errors.New("protocol: unsupported frame kind")
	ErrBodyTooLong = errors.New("protocol: body exceeds limit")
)

// Header is the fixed frame header.
type Header struct {
	Kind    Kind
	BodyLen uint32
}

// Encode writes one frame (header + body) to w in a single Write call.
// Callers sharing w between goroutines must serialize calls to Encode.
func Encode(w io.Writer, kind Kind, body []byte) error {
	if uint64(len(body)) > uint64(MaxBodyLen) {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLong, len(body))
	}
	buf := make([]byte, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicByte1, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = byte(kind)
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(body)))
	copy(buf[HeaderSize:], body)

	_, err := w.Write(buf)
	return err
}

// Decode reads one frame from r. It returns io.EOF only when the stream ends
// cleanly between frames.
func Decode(r io.Reader) (Header, []byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Header{}, nil, err
	}
	if hdr[0] != MagicByte1 || hdr[1] != MagicByte2 || hdr[2] != MagicByte3 {
		return Header{}, nil, fmt.Errorf("%w: %x", ErrBadMagic, hdr[0:3])
	}
	if hdr[3] != Version {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrBadVersion, hdr[3])
	}
	kind := Kind(hdr[4])
	if kind != KindRequest && kind != KindResponse {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrBadKind, hdr[4])
	}
	bodyLen := binary.BigEndian.Uint32(hdr[5:9])
	if bodyLen > MaxBodyLen {
		return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLong, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, nil, err
	}
	return Header{Kind: kind, BodyLen: bodyLen}, body, nil
}
