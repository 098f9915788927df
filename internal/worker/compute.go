package worker

import (
	"github.com/gpurelay/gpurelay/internal/device"
	"github.com/gpurelay/gpurelay/internal/wire"
)

// dispatchCompute executes one compute-runtime call against the local
// backend. Argument blocks that fail to decode get InvalidArgument; backend
// failures are relayed with their own status, distinct from any transport
// problem the client might see.
func (st *connState) dispatchCompute(op wire.Opcode, req *wire.Frame) (wire.Status, []byte, []byte) {
	rt := st.srv.runtime

	switch op {
	case wire.OpDeviceCount:
		n, err := rt.DeviceCount()
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.DeviceCountRet{Count: uint32(n)})
		return status, ret, nil

	case wire.OpSetDevice:
		var args wire.SetDeviceArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		n, err := rt.DeviceCount()
		if err != nil {
			return statusOf(err), nil, nil
		}
		if int(args.Device) >= n {
			return wire.StatusOutOfRange, nil, nil
		}
		st.device = int(args.Device)
		return wire.StatusSuccess, nil, nil

	case wire.OpDeviceProperties:
		var args wire.DevicePropertiesArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		props, err := rt.Properties(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		ret := wire.DevicePropertiesRet{
			VendorID:     props.VendorID,
			DeviceID:     props.DeviceID,
			ComputeUnits: props.ComputeUnits,
			ClockMHz:     props.ClockMHz,
			TotalMemory:  props.TotalMemory,
		}
		wire.PutString(ret.Name[:], props.Name)
		wire.PutString(ret.Arch[:], props.Arch)
		status, raw := encodeRet(&ret)
		return status, raw, nil

	case wire.OpRuntimeVersion:
		v, err := rt.Version()
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.RuntimeVersionRet{Version: v})
		return status, ret, nil

	case wire.OpMemAlloc:
		var args wire.MemAllocArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		mem, err := rt.MemAlloc(int(args.Device), args.Size)
		if err != nil {
			return statusOf(err), nil, nil
		}
		h := st.table.mint(kindMemory, mem)
		status, ret := encodeRet(&wire.MemAllocRet{Handle: h})
		return status, ret, nil

	case wire.OpMemFree:
		var args wire.HandleArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		res, err := st.table.remove(args.Handle, kindMemory)
		if err != nil {
			return statusOf(err), nil, nil
		}
		if err := res.(device.Memory).Free(); err != nil {
			return statusOf(err), nil, nil
		}
		return wire.StatusSuccess, nil, nil

	case wire.OpMemcpyHtoD:
		var args wire.MemcpyHtoDArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		mem, err := st.table.memory(args.Dst)
		if err != nil {
			return statusOf(err), nil, nil
		}
		if err := mem.Write(0, req.Payload); err != nil {
			return statusOf(err), nil, nil
		}
		return wire.StatusSuccess, nil, nil

	case wire.OpMemcpyDtoH:
		var args wire.MemcpyDtoHArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		// A length beyond the payload cap could never be framed back, so
		// fail the call rather than the response write.
		if args.Length > wire.MaxPayload {
			return wire.StatusInvalidArgument, nil, nil
		}
		mem, err := st.table.memory(args.Src)
		if err != nil {
			return statusOf(err), nil, nil
		}
		if args.Length > mem.Size() {
			return wire.StatusInvalidArgument, nil, nil
		}
		buf := make([]byte, args.Length)
		if err := mem.Read(0, buf); err != nil {
			return statusOf(err), nil, nil
		}
		return wire.StatusSuccess, nil, buf

	case wire.OpStreamCreate:
		var args wire.StreamCreateArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		stream, err := rt.StreamCreate(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		h := st.table.mint(kindStream, stream)
		status, ret := encodeRet(&wire.HandleRet{Handle: h})
		return status, ret, nil

	case wire.OpStreamDestroy:
		var args wire.HandleArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		res, err := st.table.remove(args.Handle, kindStream)
		if err != nil {
			return statusOf(err), nil, nil
		}
		if err := res.(device.Stream).Destroy(); err != nil {
			return statusOf(err), nil, nil
		}
		return wire.StatusSuccess, nil, nil

	case wire.OpEventCreate:
		var args wire.EventCreateArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		event, err := rt.EventCreate(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		h := st.table.mint(kindEvent, event)
		status, ret := encodeRet(&wire.HandleRet{Handle: h})
		return status, ret, nil

	case wire.OpEventDestroy:
		var args wire.HandleArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		res, err := st.table.remove(args.Handle, kindEvent)
		if err != nil {
			return statusOf(err), nil, nil
		}
		if err := res.(device.Event).Destroy(); err != nil {
			return statusOf(err), nil, nil
		}
		return wire.StatusSuccess, nil, nil

	case wire.OpModuleLoad:
		var args wire.ModuleLoadArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		if len(req.Payload) == 0 {
			return wire.StatusInvalidArgument, nil, nil
		}
		mod, err := rt.ModuleLoad(int(args.Device), req.Payload)
		if err != nil {
			return statusOf(err), nil, nil
		}
		h := st.table.mint(kindModule, mod)
		status, ret := encodeRet(&wire.HandleRet{Handle: h})
		return status, ret, nil

	case wire.OpModuleGetFunction:
		var args wire.ModuleGetFunctionArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		mod, err := st.table.module(args.Module)
		if err != nil {
			return statusOf(err), nil, nil
		}
		fn, err := mod.Function(wire.GetString(args.Name[:]))
		if err != nil {
			return statusOf(err), nil, nil
		}
		h := st.table.mint(kindFunction, fn)
		status, ret := encodeRet(&wire.HandleRet{Handle: h})
		return status, ret, nil

	case wire.OpLaunchKernel:
		return st.launchKernel(req)

	default:
		return wire.StatusInvalidArgument, nil, nil
	}
}

func (st *connState) launchKernel(req *wire.Frame) (wire.Status, []byte, []byte) {
	var args wire.LaunchKernelArgs
	if err := wire.DecodeArgs(req.Args, &args); err != nil {
		return wire.StatusInvalidArgument, nil, nil
	}
	fn, err := st.table.function(args.Function)
	if err != nil {
		return statusOf(err), nil, nil
	}
	var stream device.Stream
	if args.Stream != 0 {
		stream, err = st.table.stream(args.Stream)
		if err != nil {
			return statusOf(err), nil, nil
		}
	}
	wireArgs, err := wire.UnpackKernelArgs(req.Payload, args.ArgCount)
	if err != nil {
		return wire.StatusInvalidArgument, nil, nil
	}
	launchArgs := make([]device.LaunchArg, 0, len(wireArgs))
	for _, a := range wireArgs {
		switch a.Kind {
		case wire.KernelArgMem:
			mem, err := st.table.memory(a.Handle)
			if err != nil {
				return statusOf(err), nil, nil
			}
			launchArgs = append(launchArgs, device.LaunchArg{Mem: mem})
		default:
			launchArgs = append(launchArgs, device.LaunchArg{Data: a.Data})
		}
	}
	grid := device.Dim3{X: args.GridX, Y: args.GridY, Z: args.GridZ}
	block := device.Dim3{X: args.BlockX, Y: args.BlockY, Z: args.BlockZ}
	if err := fn.Launch(grid, block, args.SharedMem, stream, launchArgs); err != nil {
		return statusOf(err), nil, nil
	}
	return wire.StatusSuccess, nil, nil
}
