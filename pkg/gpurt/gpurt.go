// Package gpurt is the compute-runtime client stub. It exposes the call
// surface of the native runtime it remotes; each function encodes its
// arguments, performs one synchronous round trip to the worker, and maps
// the outcome onto the native Status enum. Callers cannot tell they are
// talking to a remote device except through the connection-level statuses.
package gpurt

import (
	"errors"

	"github.com/gpurelay/gpurelay/internal/codeobj"
	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/session"
	"github.com/gpurelay/gpurelay/internal/wire"
)

// Config overrides the environment-derived connection settings.
type Config struct {
	Host       string
	Port       int
	TimeoutSec int
	Debug      bool
}

// Client is a connection to one worker's compute runtime. The underlying
// session connects lazily on the first call and transparently reconnects
// after a transport failure. Calls are serialized per client.
type Client struct {
	sess   *session.Session
	device uint32
}

// NewClient creates a client. A nil config takes everything from the
// environment (GPURELAY_HOST, GPURELAY_PORT, GPURELAY_TIMEOUT,
// GPURELAY_DEBUG), falling back to localhost:18515.
func NewClient(cfg *Config) *Client {
	scfg := session.FromEnv()
	if cfg != nil {
		if cfg.Host != "" {
			scfg.Host = cfg.Host
		}
		if cfg.Port > 0 {
			scfg.Port = cfg.Port
		}
		if cfg.TimeoutSec > 0 {
			scfg.TimeoutSec = cfg.TimeoutSec
		}
		if cfg.Debug {
			scfg.Debug = true
		}
	}
	return &Client{sess: session.New(scfg)}
}

// Close tears down the worker connection. Handles obtained from this
// client are invalid afterwards.
func (c *Client) Close() {
	c.sess.Close()
}

// call performs one round trip and folds transport failures into the
// status taxonomy.
func (c *Client) call(op wire.Opcode, args any, payload []byte) (Status, []byte, []byte) {
	st, ret, pl, err := c.sess.Call(op, args, payload)
	if err != nil {
		var aerr apperrors.Error
		if errors.As(err, &aerr) {
			return Status(aerr.StatusCode()), nil, nil
		}
		return ErrorConnectionFailed, nil, nil
	}
	return Status(st), ret, pl
}

// GetDeviceCount stores the number of devices the worker serves.
func (c *Client) GetDeviceCount(count *int) Status {
	if count == nil {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpDeviceCount, nil, nil)
	if status != Success {
		return status
	}
	var out wire.DeviceCountRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*count = int(out.Count)
	return Success
}

// SetDevice selects the device subsequent allocations and loads target.
func (c *Client) SetDevice(device int) Status {
	if device < 0 {
		return ErrorInvalidArgument
	}
	status, _, _ := c.call(wire.OpSetDevice, &wire.SetDeviceArgs{Device: uint32(device)}, nil)
	if status == Success {
		c.device = uint32(device)
	}
	return status
}

// GetDeviceProperties fills props for the given device.
func (c *Client) GetDeviceProperties(props *DeviceProperties, device int) Status {
	if props == nil || device < 0 {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpDeviceProperties, &wire.DevicePropertiesArgs{Device: uint32(device)}, nil)
	if status != Success {
		return status
	}
	var out wire.DevicePropertiesRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*props = DeviceProperties{
		Name:         wire.GetString(out.Name[:]),
		Arch:         wire.GetString(out.Arch[:]),
		VendorID:     out.VendorID,
		DeviceID:     out.DeviceID,
		ComputeUnits: out.ComputeUnits,
		ClockMHz:     out.ClockMHz,
		TotalMemory:  out.TotalMemory,
	}
	return Success
}

// RuntimeGetVersion stores the worker's runtime version.
func (c *Client) RuntimeGetVersion(version *int) Status {
	if version == nil {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpRuntimeVersion, nil, nil)
	if status != Success {
		return status
	}
	var out wire.RuntimeVersionRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*version = int(out.Version)
	return Success
}

// Malloc allocates size bytes on the selected device and stores the
// resulting handle.
func (c *Client) Malloc(handle *MemHandle, size uint64) Status {
	if handle == nil || size == 0 {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpMemAlloc, &wire.MemAllocArgs{Device: c.device, Size: size}, nil)
	if status != Success {
		return status
	}
	var out wire.MemAllocRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*handle = MemHandle(out.Handle)
	return Success
}

// Free releases a device memory region.
func (c *Client) Free(handle MemHandle) Status {
	if handle == 0 {
		return ErrorInvalidHandle
	}
	status, _, _ := c.call(wire.OpMemFree, &wire.HandleArgs{Handle: uint64(handle)}, nil)
	return status
}

// MemcpyHtoD copies src into the device region. The bytes travel inline in
// the request payload. An empty source is a legal no-op.
func (c *Client) MemcpyHtoD(dst MemHandle, src []byte) Status {
	if dst == 0 {
		return ErrorInvalidHandle
	}
	if len(src) == 0 {
		return Success
	}
	status, _, _ := c.call(wire.OpMemcpyHtoD, &wire.MemcpyHtoDArgs{Dst: uint64(dst)}, src)
	return status
}

// MemcpyDtoH copies len(dst) bytes from the device region into dst.
func (c *Client) MemcpyDtoH(dst []byte, src MemHandle) Status {
	if src == 0 {
		return ErrorInvalidHandle
	}
	if len(dst) == 0 {
		return Success
	}
	status, _, payload := c.call(wire.OpMemcpyDtoH,
		&wire.MemcpyDtoHArgs{Src: uint64(src), Length: uint64(len(dst))}, nil)
	if status != Success {
		return status
	}
	if len(payload) != len(dst) {
		return ErrorProtocol
	}
	copy(dst, payload)
	return Success
}

// StreamCreate creates an execution stream on the selected device.
func (c *Client) StreamCreate(stream *StreamHandle) Status {
	if stream == nil {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpStreamCreate, &wire.StreamCreateArgs{Device: c.device}, nil)
	if status != Success {
		return status
	}
	var out wire.HandleRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*stream = StreamHandle(out.Handle)
	return Success
}

// StreamDestroy destroys a stream.
func (c *Client) StreamDestroy(stream StreamHandle) Status {
	if stream == 0 {
		return ErrorInvalidHandle
	}
	status, _, _ := c.call(wire.OpStreamDestroy, &wire.HandleArgs{Handle: uint64(stream)}, nil)
	return status
}

// EventCreate creates an event on the selected device.
func (c *Client) EventCreate(event *EventHandle) Status {
	if event == nil {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpEventCreate, &wire.EventCreateArgs{Device: c.device}, nil)
	if status != Success {
		return status
	}
	var out wire.HandleRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*event = EventHandle(out.Handle)
	return Success
}

// EventDestroy destroys an event.
func (c *Client) EventDestroy(event EventHandle) Status {
	if event == 0 {
		return ErrorInvalidHandle
	}
	status, _, _ := c.call(wire.OpEventDestroy, &wire.HandleArgs{Handle: uint64(event)}, nil)
	return status
}

// ModuleLoadData ships a code object container to the worker and stores
// the module handle. The container is parsed locally first so an invalid
// object fails before any network traffic.
func (c *Client) ModuleLoadData(module *ModuleHandle, image []byte) Status {
	if module == nil || len(image) == 0 {
		return ErrorInvalidArgument
	}
	if _, err := codeobj.Parse(image); err != nil {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpModuleLoad, &wire.ModuleLoadArgs{Device: c.device}, image)
	if status != Success {
		return status
	}
	var out wire.HandleRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*module = ModuleHandle(out.Handle)
	return Success
}

// ModuleGetFunction resolves an exported kernel entry point to a handle
// usable with LaunchKernel.
func (c *Client) ModuleGetFunction(fn *FunctionHandle, module ModuleHandle, name string) Status {
	if fn == nil || module == 0 || name == "" {
		return ErrorInvalidArgument
	}
	args := wire.ModuleGetFunctionArgs{Module: uint64(module)}
	wire.PutString(args.Name[:], name)
	status, ret, _ := c.call(wire.OpModuleGetFunction, &args, nil)
	if status != Success {
		return status
	}
	var out wire.HandleRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*fn = FunctionHandle(out.Handle)
	return Success
}

// LaunchKernel launches fn with the given configuration. A zero stream
// handle selects the default stream.
func (c *Client) LaunchKernel(fn FunctionHandle, grid, block Dim3, sharedMem uint32, stream StreamHandle, args []KernelArg) Status {
	if fn == 0 {
		return ErrorInvalidHandle
	}
	if grid.X == 0 || grid.Y == 0 || grid.Z == 0 || block.X == 0 || block.Y == 0 || block.Z == 0 {
		return ErrorInvalidArgument
	}
	wargs := make([]wire.KernelArg, 0, len(args))
	for _, a := range args {
		if a.isMem {
			wargs = append(wargs, wire.KernelArg{Kind: wire.KernelArgMem, Handle: uint64(a.mem)})
		} else {
			wargs = append(wargs, wire.KernelArg{Kind: wire.KernelArgData, Data: a.data})
		}
	}
	launch := wire.LaunchKernelArgs{
		Function:  uint64(fn),
		Stream:    uint64(stream),
		GridX:     grid.X,
		GridY:     grid.Y,
		GridZ:     grid.Z,
		BlockX:    block.X,
		BlockY:    block.Y,
		BlockZ:    block.Z,
		SharedMem: sharedMem,
		ArgCount:  uint32(len(wargs)),
	}
	status, _, _ := c.call(wire.OpLaunchKernel, &launch, wire.PackKernelArgs(wargs))
	return status
}
