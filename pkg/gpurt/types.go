package gpurt

import (
	"encoding/binary"

	"github.com/gpurelay/gpurelay/internal/wire"
)

// Status is the result code every runtime call returns, mirroring the
// error style of the native API this package remotes. Values through
// ErrorInternal are produced by the worker (a forwarded failure of the
// real runtime); the remaining values are produced client-side and mean
// the worker was never reached or the session broke mid-call.
type Status uint16

const (
	Success              = Status(wire.StatusSuccess)
	ErrorInvalidArgument = Status(wire.StatusInvalidArgument)
	ErrorOutOfRange      = Status(wire.StatusOutOfRange)
	ErrorOutOfMemory     = Status(wire.StatusOutOfMemory)
	ErrorInvalidHandle   = Status(wire.StatusInvalidHandle)
	ErrorInvalidArch     = Status(wire.StatusInvalidArch)
	ErrorNotInitialized  = Status(wire.StatusNotInitialized)
	ErrorInternal        = Status(wire.StatusInternal)

	ErrorConnectionFailed = Status(wire.StatusConnectionFailed)
	ErrorTimeout          = Status(wire.StatusTimeout)
	ErrorProtocol         = Status(wire.StatusProtocolError)
)

func (s Status) String() string {
	return wire.Status(s).String()
}

// Remote reports whether the status was produced by the worker rather
// than by the client's transport layer.
func (s Status) Remote() bool {
	return wire.Status(s).Remote()
}

// Opaque handles to worker-side resources. A handle is meaningful only on
// the session that minted it and must never be interpreted as an address.
type (
	MemHandle      uint64
	StreamHandle   uint64
	EventHandle    uint64
	ModuleHandle   uint64
	FunctionHandle uint64
)

// Dim3 is a kernel grid or block dimension triple.
type Dim3 struct {
	X, Y, Z uint32
}

// DeviceProperties describes one device.
type DeviceProperties struct {
	Name         string
	Arch         string
	VendorID     uint32
	DeviceID     uint32
	ComputeUnits uint32
	ClockMHz     uint32
	TotalMemory  uint64
}

// KernelArg is one kernel launch argument: either a device memory handle
// or raw scalar bytes.
type KernelArg struct {
	mem   MemHandle
	data  []byte
	isMem bool
}

// MemArg builds a launch argument referencing device memory.
func MemArg(h MemHandle) KernelArg {
	return KernelArg{mem: h, isMem: true}
}

// ValueArg builds a launch argument from raw scalar bytes.
func ValueArg(data []byte) KernelArg {
	return KernelArg{data: data}
}

// Int32Arg builds a 4-byte scalar launch argument.
func Int32Arg(v int32) KernelArg {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return ValueArg(b[:])
}

// Uint64Arg builds an 8-byte scalar launch argument.
func Uint64Arg(v uint64) KernelArg {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return ValueArg(b[:])
}
