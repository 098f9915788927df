// Package device defines the boundary between the worker and the local
// driver stack it forwards into: a compute Runtime and a Telemetry source.
// The remoting layer has no knowledge of how a backend implements these;
// it only resolves wire handles to the resource interfaces below and calls
// them.
package device

import (
	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/wire"
)

// Errors a backend reports. The worker maps their status codes onto the
// wire; anything else surfaces as an internal error.
var (
	ErrOutOfRange   = apperrors.New("device: index out of range").SetStatusCode(int(wire.StatusOutOfRange))
	ErrOutOfMemory  = apperrors.New("device: out of device memory").SetStatusCode(int(wire.StatusOutOfMemory))
	ErrInvalidArch  = apperrors.New("device: code object targets a different architecture").SetStatusCode(int(wire.StatusInvalidArch))
	ErrNoSuchEntry  = apperrors.New("device: module exports no such entry point").SetStatusCode(int(wire.StatusInvalidArgument))
	ErrInvalidCopy  = apperrors.New("device: copy exceeds region bounds").SetStatusCode(int(wire.StatusInvalidArgument))
	ErrFreed        = apperrors.New("device: region already freed").SetStatusCode(int(wire.StatusInvalidHandle))
	ErrLaunchFailed = apperrors.New("device: kernel launch failed").SetStatusCode(int(wire.StatusInternal))
)

// Dim3 is a grid or block dimension triple.
type Dim3 struct {
	X, Y, Z uint32
}

// Properties describes a device to the compute surface.
type Properties struct {
	Name         string
	Arch         string
	VendorID     uint32
	DeviceID     uint32
	ComputeUnits uint32
	ClockMHz     uint32
	TotalMemory  uint64
}

// Info is the static identity a telemetry query returns.
type Info struct {
	Name         string
	Serial       string
	VendorID     uint32
	DeviceID     uint32
	RevisionID   uint32
	ComputeUnits uint32
}

// Metrics is a point-in-time telemetry snapshot.
type Metrics struct {
	HotspotMilliC  int32
	PowerMilliW    uint32
	GfxActivityPct uint32
	MemActivityPct uint32
	GfxClockMHz    uint32
	MemClockMHz    uint32
	VramUsed       uint64
	VramTotal      uint64
}

// PowerInfo describes the power envelope of a device.
type PowerInfo struct {
	CurrentMilliW    uint32
	AverageMilliW    uint32
	CapMilliW        uint32
	GfxVoltageMilliV uint32
	SocVoltageMilliV uint32
	MemVoltageMilliV uint32
}

// VramUsage is the used/total VRAM pair.
type VramUsage struct {
	Used  uint64
	Total uint64
}

// Activity is the gfx/mem busy percentage pair.
type Activity struct {
	GfxPct uint32
	MemPct uint32
}

// Runtime is the compute-runtime side of the driver boundary. All methods
// are synchronous; the backend arbitrates concurrent hardware access.
type Runtime interface {
	DeviceCount() (int, error)
	Properties(device int) (Properties, error)
	Version() (uint32, error)
	MemAlloc(device int, size uint64) (Memory, error)
	StreamCreate(device int) (Stream, error)
	EventCreate(device int) (Event, error)
	ModuleLoad(device int, container []byte) (Module, error)
}

// Memory is an allocated device memory region.
type Memory interface {
	Write(offset uint64, data []byte) error
	Read(offset uint64, dst []byte) error
	Size() uint64
	Free() error
}

// Stream is an execution stream.
type Stream interface {
	Destroy() error
}

// Event is a synchronization event.
type Event interface {
	Destroy() error
}

// Module is a loaded code object.
type Module interface {
	Function(name string) (Function, error)
	Unload() error
}

// LaunchArg is one kernel launch argument: a device memory region or raw
// scalar bytes, mirroring the wire encoding.
type LaunchArg struct {
	Mem  Memory // nil for scalar arguments
	Data []byte // nil for memory arguments
}

// Function is a kernel entry point ready to launch.
type Function interface {
	Launch(grid, block Dim3, sharedMem uint32, stream Stream, args []LaunchArg) error
}

// Telemetry is the management-library side of the driver boundary.
type Telemetry interface {
	ProcessorCount() (int, error)
	DeviceInfo(device int) (Info, error)
	Metrics(device int) (Metrics, error)
	PowerInfo(device int) (PowerInfo, error)
	VramUsage(device int) (VramUsage, error)
	Activity(device int) (Activity, error)
}
