package wire

import (
	"bytes"
	"encoding/binary"
)

// Fixed-layout argument and return blocks, one per opcode that needs them.
// Every field is fixed-width; strings travel as NUL-padded byte arrays.
// Opcodes absent here take an empty argument block.

type DeviceCountRet struct {
	Count uint32
}

type SetDeviceArgs struct {
	Device uint32
}

type DevicePropertiesArgs struct {
	Device uint32
}

type DevicePropertiesRet struct {
	Name         [64]byte
	Arch         [16]byte
	VendorID     uint32
	DeviceID     uint32
	ComputeUnits uint32
	ClockMHz     uint32
	TotalMemory  uint64
}

type RuntimeVersionRet struct {
	Version uint32
}

type MemAllocArgs struct {
	Device uint32
	Size   uint64
}

type MemAllocRet struct {
	Handle uint64
}

// HandleArgs is shared by MEM_FREE, STREAM_DESTROY and EVENT_DESTROY.
type HandleArgs struct {
	Handle uint64
}

type MemcpyHtoDArgs struct {
	Dst uint64 // payload carries the bytes
}

type MemcpyDtoHArgs struct {
	Src    uint64
	Length uint64 // response payload carries the bytes
}

type StreamCreateArgs struct {
	Device uint32
}

type EventCreateArgs struct {
	Device uint32
}

type HandleRet struct {
	Handle uint64
}

type ModuleLoadArgs struct {
	Device uint32 // payload carries the code object container
}

type ModuleGetFunctionArgs struct {
	Module uint64
	Name   [64]byte
}

type LaunchKernelArgs struct {
	Function  uint64
	Stream    uint64 // zero means the default stream
	GridX     uint32
	GridY     uint32
	GridZ     uint32
	BlockX    uint32
	BlockY    uint32
	BlockZ    uint32
	SharedMem uint32
	ArgCount  uint32 // payload carries the packed kernel arguments
}

// Telemetry blocks.

type SmiDeviceArgs struct {
	Device uint32
}

type SmiProcessorCountRet struct {
	Count uint32
}

type SmiDeviceInfoRet struct {
	Name         [64]byte
	Serial       [32]byte
	VendorID     uint32
	DeviceID     uint32
	RevisionID   uint32
	ComputeUnits uint32
}

type SmiMetricsRet struct {
	HotspotMilliC  int32
	PowerMilliW    uint32
	GfxActivityPct uint32
	MemActivityPct uint32
	GfxClockMHz    uint32
	MemClockMHz    uint32
	VramUsed       uint64
	VramTotal      uint64
}

type SmiPowerInfoRet struct {
	CurrentMilliW    uint32
	AverageMilliW    uint32
	CapMilliW        uint32
	GfxVoltageMilliV uint32
	SocVoltageMilliV uint32
	MemVoltageMilliV uint32
}

type SmiVramUsageRet struct {
	Used  uint64
	Total uint64
}

type SmiActivityRet struct {
	GfxPct uint32
	MemPct uint32
}

// PutString copies s into a fixed NUL-padded array field, truncating to
// leave room for the terminator.
func PutString(dst []byte, s string) {
	n := copy(dst, s)
	if n == len(dst) {
		n--
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// GetString extracts a NUL-padded string from a fixed array field.
func GetString(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}

// Kernel argument packing. Each launch argument is either raw scalar bytes
// passed through to the runtime or a memory handle the worker resolves to
// the backing region before launch.

const (
	KernelArgData uint8 = 0
	KernelArgMem  uint8 = 1
)

// KernelArg is one launch argument in its wire form.
type KernelArg struct {
	Kind   uint8
	Handle uint64 // valid when Kind == KernelArgMem
	Data   []byte // valid when Kind == KernelArgData
}

// PackKernelArgs serializes launch arguments into a payload segment.
func PackKernelArgs(args []KernelArg) []byte {
	var buf bytes.Buffer
	for _, a := range args {
		buf.WriteByte(a.Kind)
		switch a.Kind {
		case KernelArgMem:
			var h [8]byte
			binary.LittleEndian.PutUint64(h[:], a.Handle)
			buf.Write(h[:])
		default:
			var n [4]byte
			binary.LittleEndian.PutUint32(n[:], uint32(len(a.Data)))
			buf.Write(n[:])
			buf.Write(a.Data)
		}
	}
	return buf.Bytes()
}

// UnpackKernelArgs deserializes a launch payload produced by
// PackKernelArgs. count must match the ArgCount field of the launch
// request.
func UnpackKernelArgs(data []byte, count uint32) ([]KernelArg, error) {
	// The smallest packed argument is 5 bytes (kind plus a scalar length),
	// so a count the payload cannot hold is invalid input and must be
	// rejected before it sizes the allocation below.
	if uint64(count)*5 > uint64(len(data)) {
		return nil, ErrTruncated.Msg("frame: kernel argument count exceeds payload")
	}
	args := make([]KernelArg, 0, count)
	off := 0
	for i := uint32(0); i < count; i++ {
		if off >= len(data) {
			return nil, ErrTruncated
		}
		kind := data[off]
		off++
		switch kind {
		case KernelArgMem:
			if off+8 > len(data) {
				return nil, ErrTruncated
			}
			args = append(args, KernelArg{
				Kind:   KernelArgMem,
				Handle: binary.LittleEndian.Uint64(data[off : off+8]),
			})
			off += 8
		case KernelArgData:
			if off+4 > len(data) {
				return nil, ErrTruncated
			}
			n := int(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
			if off+n > len(data) {
				return nil, ErrTruncated
			}
			args = append(args, KernelArg{
				Kind: KernelArgData,
				Data: append([]byte(nil), data[off:off+n]...),
			})
			off += n
		default:
			return nil, ErrTruncated.Msg("frame: unknown kernel argument kind")
		}
	}
	if off != len(data) {
		return nil, ErrTruncated.Msg("frame: trailing bytes after kernel arguments")
	}
	return args, nil
}
