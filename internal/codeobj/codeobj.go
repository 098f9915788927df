// Package codeobj defines the container format for precompiled device
// binaries. A code object carries the raw machine-code image for one target
// architecture plus the names of its exported kernel entry points; it is
// produced by an offline compiler step and is immutable once built. Because
// the image is host-toolchain-independent it can be embedded in a client
// binary and shipped to the worker as-is.
package codeobj

import (
	"bytes"
	"encoding/binary"

	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/wire"
)

const (
	// Magic identifies a code object container: "GCOB" little-endian.
	Magic uint32 = 0x424F4347

	// FormatVersion is the container format version.
	FormatVersion uint16 = 1

	maxEntries   = 1024
	maxNameLen   = 256
	maxArchLen   = 32
	maxImageSize = wire.MaxPayload
)

var (
	ErrBadContainer = apperrors.New("codeobj: not a code object container").SetStatusCode(int(wire.StatusInvalidArgument))
	ErrBadVersion   = apperrors.New("codeobj: unsupported container version").SetStatusCode(int(wire.StatusInvalidArgument))
	ErrNoEntries    = apperrors.New("codeobj: container exports no entry points").SetStatusCode(int(wire.StatusInvalidArgument))
	ErrTruncated    = apperrors.New("codeobj: truncated container").SetStatusCode(int(wire.StatusInvalidArgument))
)

// CodeObject is a parsed container.
type CodeObject struct {
	Arch    string   // target architecture tag, e.g. "gfx1030"
	Entries []string // exported kernel entry point names
	Image   []byte   // raw device machine code
}

// Build serializes a code object container. The arch tag and at least one
// entry point name are required; the image may be any non-empty byte
// sequence, the container does not interpret it.
func Build(arch string, entries []string, image []byte) ([]byte, error) {
	if arch == "" || len(arch) > maxArchLen {
		return nil, ErrBadContainer.Msg("codeobj: invalid arch tag")
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	if len(entries) > maxEntries {
		return nil, ErrBadContainer.Msg("codeobj: too many entry points")
	}
	if len(image) == 0 || len(image) > maxImageSize {
		return nil, ErrBadContainer.Msg("codeobj: invalid image size")
	}

	var buf bytes.Buffer
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	writeU16 := func(v uint16) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf.Write(b[:])
	}
	writeStr := func(s string) {
		writeU16(uint16(len(s)))
		buf.WriteString(s)
	}

	writeU32(Magic)
	writeU16(FormatVersion)
	writeStr(arch)
	writeU16(uint16(len(entries)))
	for _, e := range entries {
		if e == "" || len(e) > maxNameLen {
			return nil, ErrBadContainer.Msg("codeobj: invalid entry point name")
		}
		writeStr(e)
	}
	writeU32(uint32(len(image)))
	buf.Write(image)
	return buf.Bytes(), nil
}

// Parse deserializes a container, validating magic, version and structure.
func Parse(data []byte) (*CodeObject, error) {
	r := &reader{data: data}

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrBadContainer
	}
	version, err := r.u16()
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, ErrBadVersion
	}

	arch, err := r.str()
	if err != nil {
		return nil, err
	}
	if arch == "" || len(arch) > maxArchLen {
		return nil, ErrBadContainer.Msg("codeobj: invalid arch tag")
	}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoEntries
	}
	if int(count) > maxEntries {
		return nil, ErrBadContainer.Msg("codeobj: too many entry points")
	}
	entries := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, ErrBadContainer.Msg("codeobj: empty entry point name")
		}
		entries = append(entries, name)
	}

	imageLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if int(imageLen) > maxImageSize {
		return nil, ErrBadContainer.Msg("codeobj: invalid image size")
	}
	image, err := r.bytes(int(imageLen))
	if err != nil {
		return nil, err
	}
	if r.off != len(r.data) {
		return nil, ErrBadContainer.Msg("codeobj: trailing bytes")
	}

	return &CodeObject{Arch: arch, Entries: entries, Image: image}, nil
}

// CompatibleWith reports whether the code object targets the given device
// architecture. Matching is exact; there is no cross-architecture loading.
func (c *CodeObject) CompatibleWith(deviceArch string) bool {
	return c.Arch == deviceArch
}

// HasEntry reports whether the container exports the named entry point.
func (c *CodeObject) HasEntry(name string) bool {
	for _, e := range c.Entries {
		if e == name {
			return true
		}
	}
	return false
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := append([]byte(nil), r.data[r.off:r.off+n]...)
	r.off += n
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	if int(n) > maxNameLen {
		return "", ErrBadContainer.Msg("codeobj: string field too long")
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
