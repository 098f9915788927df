// Package simdev provides an in-memory device backend implementing both
// sides of the driver boundary. It stands in for the real runtime and
// telemetry libraries on hosts without an accelerator: memory regions are
// host byte slices, streams and events are inert, and loaded modules
// execute a small set of built-in kernels host-side. The worker's default
// profile and the test suite run on this backend.
package simdev

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gpurelay/gpurelay/internal/codeobj"
	"github.com/gpurelay/gpurelay/internal/device"
)

// RuntimeVersion reported by the simulated runtime.
const RuntimeVersion uint32 = 60032

// DeviceSpec configures one simulated device.
type DeviceSpec struct {
	Name         string
	Arch         string
	VramBytes    uint64
	ComputeUnits uint32
}

// DefaultSpecs returns the single-device profile used when no
// configuration is supplied.
func DefaultSpecs() []DeviceSpec {
	return []DeviceSpec{
		{
			Name:         "Sim Radeon GX1000",
			Arch:         "gfx1030",
			VramBytes:    16 << 30,
			ComputeUnits: 60,
		},
	}
}

// Backend implements device.Runtime and device.Telemetry over simulated
// devices.
type Backend struct {
	devices []*simDevice
}

type simDevice struct {
	mu       sync.Mutex
	index    int
	spec     DeviceSpec
	serial   string
	vramUsed uint64
}

// New creates a backend serving the given devices. With no specs the
// default profile is used.
func New(specs ...DeviceSpec) *Backend {
	if len(specs) == 0 {
		specs = DefaultSpecs()
	}
	b := &Backend{}
	for i, spec := range specs {
		b.devices = append(b.devices, &simDevice{
			index:  i,
			spec:   spec,
			serial: uuid.NewString()[:8],
		})
	}
	return b
}

func (b *Backend) device(i int) (*simDevice, error) {
	if i < 0 || i >= len(b.devices) {
		return nil, device.ErrOutOfRange
	}
	return b.devices[i], nil
}

// DeviceCount implements device.Runtime.
func (b *Backend) DeviceCount() (int, error) {
	return len(b.devices), nil
}

// Properties implements device.Runtime.
func (b *Backend) Properties(i int) (device.Properties, error) {
	d, err := b.device(i)
	if err != nil {
		return device.Properties{}, err
	}
	return device.Properties{
		Name:         d.spec.Name,
		Arch:         d.spec.Arch,
		VendorID:     0x1002,
		DeviceID:     0x73BF,
		ComputeUnits: d.spec.ComputeUnits,
		ClockMHz:     2250,
		TotalMemory:  d.spec.VramBytes,
	}, nil
}

// Version implements device.Runtime.
func (b *Backend) Version() (uint32, error) {
	return RuntimeVersion, nil
}

// MemAlloc implements device.Runtime. Allocation is accounted against the
// device's VRAM budget.
func (b *Backend) MemAlloc(i int, size uint64) (device.Memory, error) {
	d, err := b.device(i)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if size == 0 || d.vramUsed+size > d.spec.VramBytes {
		return nil, device.ErrOutOfMemory
	}
	d.vramUsed += size
	return &simMemory{dev: d, buf: make([]byte, size)}, nil
}

// StreamCreate implements device.Runtime.
func (b *Backend) StreamCreate(i int) (device.Stream, error) {
	if _, err := b.device(i); err != nil {
		return nil, err
	}
	return &simStream{}, nil
}

// EventCreate implements device.Runtime.
func (b *Backend) EventCreate(i int) (device.Event, error) {
	if _, err := b.device(i); err != nil {
		return nil, err
	}
	return &simEvent{}, nil
}

// ModuleLoad implements device.Runtime. The container is parsed and its
// arch tag checked against the device; an incompatible object fails the
// load, never the connection.
func (b *Backend) ModuleLoad(i int, container []byte) (device.Module, error) {
	d, err := b.device(i)
	if err != nil {
		return nil, err
	}
	obj, err := codeobj.Parse(container)
	if err != nil {
		return nil, err
	}
	if !obj.CompatibleWith(d.spec.Arch) {
		return nil, device.ErrInvalidArch.Msg(
			fmt.Sprintf("device: code object targets %s, device is %s", obj.Arch, d.spec.Arch))
	}
	return &simModule{obj: obj}, nil
}

type simMemory struct {
	dev   *simDevice
	mu    sync.Mutex
	buf   []byte
	freed bool
}

func (m *simMemory) Write(offset uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.freed {
		return device.ErrFreed
	}
	if offset+uint64(len(data)) > uint64(len(m.buf)) {
		return device.ErrInvalidCopy
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *simMemory) Read(offset uint64, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.freed {
		return device.ErrFreed
	}
	if offset+uint64(len(dst)) > uint64(len(m.buf)) {
		return device.ErrInvalidCopy
	}
	copy(dst, m.buf[offset:])
	return nil
}

func (m *simMemory) Size() uint64 {
	return uint64(len(m.buf))
}

// Free releases the region and scrubs its contents so a later allocation
// can never observe stale data.
func (m *simMemory) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.freed {
		return device.ErrFreed
	}
	m.freed = true
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.dev.mu.Lock()
	m.dev.vramUsed -= uint64(len(m.buf))
	m.dev.mu.Unlock()
	m.buf = nil
	return nil
}

type simStream struct{}

func (s *simStream) Destroy() error { return nil }

type simEvent struct{}

func (e *simEvent) Destroy() error { return nil }

type simModule struct {
	obj      *codeobj.CodeObject
	unloaded bool
}

func (m *simModule) Function(name string) (device.Function, error) {
	if m.unloaded || !m.obj.HasEntry(name) {
		return nil, device.ErrNoSuchEntry
	}
	impl, ok := builtinKernels[name]
	if !ok {
		return nil, device.ErrNoSuchEntry.Msg("device: kernel not supported by simulated runtime")
	}
	return &simFunction{impl: impl}, nil
}

func (m *simModule) Unload() error {
	m.unloaded = true
	return nil
}

type kernelImpl func(grid, block device.Dim3, args []device.LaunchArg) error

type simFunction struct {
	impl kernelImpl
}

// Launch executes the kernel synchronously. Streams are accepted for
// interface fidelity; the simulated runtime has no asynchrony to order.
func (f *simFunction) Launch(grid, block device.Dim3, sharedMem uint32, stream device.Stream, args []device.LaunchArg) error {
	if grid.X == 0 || grid.Y == 0 || grid.Z == 0 || block.X == 0 || block.Y == 0 || block.Z == 0 {
		return device.ErrLaunchFailed.Msg("device: zero launch dimension")
	}
	return f.impl(grid, block, args)
}

// builtinKernels maps entry point names to their host-side implementations.
var builtinKernels = map[string]kernelImpl{
	"vecadd": kernelVecAdd,
}

// kernelVecAdd computes c[i] = a[i] + b[i] over int32 elements for every
// launched thread index i below n. Arguments: a, b, c memory regions and a
// 4-byte scalar n.
func kernelVecAdd(grid, block device.Dim3, args []device.LaunchArg) error {
	if len(args) != 4 || args[0].Mem == nil || args[1].Mem == nil || args[2].Mem == nil || len(args[3].Data) != 4 {
		return device.ErrLaunchFailed.Msg("device: vecadd expects (mem, mem, mem, i32)")
	}
	a, bm, c := args[0].Mem, args[1].Mem, args[2].Mem
	n := int(int32(binary.LittleEndian.Uint32(args[3].Data)))
	threads := int(grid.X) * int(block.X)
	if n > threads {
		n = threads
	}
	if n < 0 {
		n = 0
	}
	abuf := make([]byte, n*4)
	bbuf := make([]byte, n*4)
	if err := a.Read(0, abuf); err != nil {
		return err
	}
	if err := bm.Read(0, bbuf); err != nil {
		return err
	}
	cbuf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		av := int32(binary.LittleEndian.Uint32(abuf[i*4:]))
		bv := int32(binary.LittleEndian.Uint32(bbuf[i*4:]))
		binary.LittleEndian.PutUint32(cbuf[i*4:], uint32(av+bv))
	}
	return c.Write(0, cbuf)
}

// Telemetry implementation. Values are derived from device state so that
// usage queries reflect live allocations.

// ProcessorCount implements device.Telemetry.
func (b *Backend) ProcessorCount() (int, error) {
	return len(b.devices), nil
}

// DeviceInfo implements device.Telemetry.
func (b *Backend) DeviceInfo(i int) (device.Info, error) {
	d, err := b.device(i)
	if err != nil {
		return device.Info{}, err
	}
	return device.Info{
		Name:         d.spec.Name,
		Serial:       d.serial,
		VendorID:     0x1002,
		DeviceID:     0x73BF,
		RevisionID:   0xC1,
		ComputeUnits: d.spec.ComputeUnits,
	}, nil
}

// Metrics implements device.Telemetry.
func (b *Backend) Metrics(i int) (device.Metrics, error) {
	d, err := b.device(i)
	if err != nil {
		return device.Metrics{}, err
	}
	d.mu.Lock()
	used := d.vramUsed
	d.mu.Unlock()
	act := b.activityFor(d)
	return device.Metrics{
		HotspotMilliC:  int32(52000 + 200*act.GfxPct),
		PowerMilliW:    35000 + 1800*act.GfxPct,
		GfxActivityPct: act.GfxPct,
		MemActivityPct: act.MemPct,
		GfxClockMHz:    2250,
		MemClockMHz:    2000,
		VramUsed:       used,
		VramTotal:      d.spec.VramBytes,
	}, nil
}

// PowerInfo implements device.Telemetry.
func (b *Backend) PowerInfo(i int) (device.PowerInfo, error) {
	d, err := b.device(i)
	if err != nil {
		return device.PowerInfo{}, err
	}
	act := b.activityFor(d)
	current := 35000 + 1800*act.GfxPct
	return device.PowerInfo{
		CurrentMilliW:    current,
		AverageMilliW:    current,
		CapMilliW:        250000,
		GfxVoltageMilliV: 1025,
		SocVoltageMilliV: 900,
		MemVoltageMilliV: 1350,
	}, nil
}

// VramUsage implements device.Telemetry.
func (b *Backend) VramUsage(i int) (device.VramUsage, error) {
	d, err := b.device(i)
	if err != nil {
		return device.VramUsage{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return device.VramUsage{Used: d.vramUsed, Total: d.spec.VramBytes}, nil
}

// Activity implements device.Telemetry.
func (b *Backend) Activity(i int) (device.Activity, error) {
	d, err := b.device(i)
	if err != nil {
		return device.Activity{}, err
	}
	return b.activityFor(d), nil
}

func (b *Backend) activityFor(d *simDevice) device.Activity {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Activity tracks the VRAM occupancy fraction, which gives tests a
	// deterministic value tied to observable state.
	var pct uint32
	if d.spec.VramBytes > 0 {
		pct = uint32(d.vramUsed * 100 / d.spec.VramBytes)
	}
	return device.Activity{GfxPct: pct, MemPct: pct}
}
