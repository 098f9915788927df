// Package wire implements the framing layer of the remoting protocol:
// a fixed little-endian header, a fixed-layout argument block, and an
// optional variable-length payload segment. A request written by one build
// of the client stub is readable by a matching worker build regardless of
// host architecture.
package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"

	"github.com/gpurelay/gpurelay/internal/common/apperrors"
)

const (
	// Magic identifies a frame header. "GR" little-endian.
	Magic uint16 = 0x4752

	// Version is the protocol version. Client and worker compare for
	// equality; there is no negotiation.
	Version uint8 = 1

	headerSize = 16

	// FlagCompressed marks a snappy-compressed payload segment.
	FlagCompressed uint8 = 1 << 0

	// MaxPayload caps the on-wire payload segment. A declared length above
	// this is a protocol error and is rejected before any allocation.
	MaxPayload = 256 << 20

	// maxDecompressed caps the decoded size of a compressed payload.
	maxDecompressed = 512 << 20

	// compressMin is the payload size from which compression is attempted.
	compressMin = 4 << 10
)

var (
	ErrBadMagic      = apperrors.New("frame: bad magic").SetStatusCode(int(StatusProtocolError))
	ErrBadVersion    = apperrors.New("frame: protocol version mismatch").SetStatusCode(int(StatusProtocolError))
	ErrFrameTooLarge = apperrors.New("frame: declared payload exceeds limit").SetStatusCode(int(StatusProtocolError))
	ErrTruncated     = apperrors.New("frame: truncated").SetStatusCode(int(StatusProtocolError))
	ErrArgBlockSize  = apperrors.New("frame: argument block too large").SetStatusCode(int(StatusProtocolError))
)

// Frame is one decoded protocol frame. Code carries the opcode on requests
// and the status on responses; the framing layer does not distinguish.
type Frame struct {
	Code    uint16
	Args    []byte
	Payload []byte
}

// WriteFrame encodes and writes one frame. Payloads of compressMin bytes or
// more are snappy-compressed when that actually shrinks them; the flag bit
// tells the reader. A zero-length argument block and payload are legal.
func WriteFrame(w io.Writer, code uint16, args, payload []byte) error {
	if len(args) > 0xFFFF {
		return ErrArgBlockSize
	}
	if len(payload) > MaxPayload {
		return ErrFrameTooLarge
	}

	var flags uint8
	if len(payload) >= compressMin {
		compressed := snappy.Encode(nil, payload)
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= FlagCompressed
		}
	}

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], Magic)
	hdr[2] = Version
	hdr[3] = flags
	binary.LittleEndian.PutUint16(hdr[4:6], code)
	binary.LittleEndian.PutUint16(hdr[6:8], uint16(len(args)))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(payload)))
	// bytes 12-16 reserved, zero

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(args) > 0 {
		if _, err := w.Write(args); err != nil {
			return err
		}
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads and decodes one frame. It returns ErrTruncated when the
// stream ends mid-frame and ErrFrameTooLarge when the declared payload
// length exceeds MaxPayload. io.EOF is returned unwrapped when the stream
// ends cleanly on a frame boundary.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ErrTruncated.Err(err)
	}

	if binary.LittleEndian.Uint16(hdr[0:2]) != Magic {
		return nil, ErrBadMagic
	}
	if hdr[2] != Version {
		return nil, ErrBadVersion
	}
	flags := hdr[3]
	code := binary.LittleEndian.Uint16(hdr[4:6])
	argLen := int(binary.LittleEndian.Uint16(hdr[6:8]))
	payloadLen := int(binary.LittleEndian.Uint32(hdr[8:12]))

	if payloadLen > MaxPayload {
		return nil, ErrFrameTooLarge
	}

	f := &Frame{Code: code}
	if argLen > 0 {
		f.Args = make([]byte, argLen)
		if _, err := io.ReadFull(r, f.Args); err != nil {
			return nil, ErrTruncated.Err(err)
		}
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, ErrTruncated.Err(err)
		}
	}

	if flags&FlagCompressed != 0 {
		n, err := snappy.DecodedLen(f.Payload)
		if err != nil {
			return nil, ErrTruncated.Err(err)
		}
		if n > maxDecompressed {
			return nil, ErrFrameTooLarge
		}
		decoded, err := snappy.Decode(nil, f.Payload)
		if err != nil {
			return nil, ErrTruncated.Err(err)
		}
		f.Payload = decoded
	}
	return f, nil
}

// EncodeArgs serializes a fixed-layout argument or return struct. The value
// must contain only fixed-width fields so the encoding is identical across
// host architectures.
func EncodeArgs(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeArgs deserializes a fixed-layout argument or return struct.
func DecodeArgs(data []byte, v any) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, v); err != nil {
		return ErrTruncated.Err(err)
	}
	return nil
}
