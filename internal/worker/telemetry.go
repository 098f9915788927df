package worker

import (
	"github.com/gpurelay/gpurelay/internal/wire"
)

// dispatchTelemetry executes one management-library call. The telemetry
// surface has an explicit lifecycle: queries before SMI_INIT (or after
// SMI_SHUTDOWN) fail with NotInitialized.
func (st *connState) dispatchTelemetry(op wire.Opcode, req *wire.Frame) (wire.Status, []byte, []byte) {
	tel := st.srv.telemetry

	switch op {
	case wire.OpSmiInit:
		if tel == nil {
			return wire.StatusInternal, nil, nil
		}
		st.smiReady = true
		return wire.StatusSuccess, nil, nil

	case wire.OpSmiShutdown:
		st.smiReady = false
		return wire.StatusSuccess, nil, nil
	}

	if !st.smiReady || tel == nil {
		return wire.StatusNotInitialized, nil, nil
	}

	switch op {
	case wire.OpSmiProcessorCount:
		n, err := tel.ProcessorCount()
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.SmiProcessorCountRet{Count: uint32(n)})
		return status, ret, nil

	case wire.OpSmiDeviceInfo:
		var args wire.SmiDeviceArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		info, err := tel.DeviceInfo(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		ret := wire.SmiDeviceInfoRet{
			VendorID:     info.VendorID,
			DeviceID:     info.DeviceID,
			RevisionID:   info.RevisionID,
			ComputeUnits: info.ComputeUnits,
		}
		wire.PutString(ret.Name[:], info.Name)
		wire.PutString(ret.Serial[:], info.Serial)
		status, raw := encodeRet(&ret)
		return status, raw, nil

	case wire.OpSmiMetrics:
		var args wire.SmiDeviceArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		m, err := tel.Metrics(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.SmiMetricsRet{
			HotspotMilliC:  m.HotspotMilliC,
			PowerMilliW:    m.PowerMilliW,
			GfxActivityPct: m.GfxActivityPct,
			MemActivityPct: m.MemActivityPct,
			GfxClockMHz:    m.GfxClockMHz,
			MemClockMHz:    m.MemClockMHz,
			VramUsed:       m.VramUsed,
			VramTotal:      m.VramTotal,
		})
		return status, ret, nil

	case wire.OpSmiPowerInfo:
		var args wire.SmiDeviceArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		p, err := tel.PowerInfo(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.SmiPowerInfoRet{
			CurrentMilliW:    p.CurrentMilliW,
			AverageMilliW:    p.AverageMilliW,
			CapMilliW:        p.CapMilliW,
			GfxVoltageMilliV: p.GfxVoltageMilliV,
			SocVoltageMilliV: p.SocVoltageMilliV,
			MemVoltageMilliV: p.MemVoltageMilliV,
		})
		return status, ret, nil

	case wire.OpSmiVramUsage:
		var args wire.SmiDeviceArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		u, err := tel.VramUsage(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.SmiVramUsageRet{Used: u.Used, Total: u.Total})
		return status, ret, nil

	case wire.OpSmiActivity:
		var args wire.SmiDeviceArgs
		if err := wire.DecodeArgs(req.Args, &args); err != nil {
			return wire.StatusInvalidArgument, nil, nil
		}
		a, err := tel.Activity(int(args.Device))
		if err != nil {
			return statusOf(err), nil, nil
		}
		status, ret := encodeRet(&wire.SmiActivityRet{GfxPct: a.GfxPct, MemPct: a.MemPct})
		return status, ret, nil

	default:
		return wire.StatusInvalidArgument, nil, nil
	}
}
