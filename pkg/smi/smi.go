// Package smi is the telemetry client stub. Unlike the compute surface it
// has an explicit lifecycle: Init dials the worker eagerly (the callers
// are short-lived CLI invocations that want connection failures up front)
// and Shutdown tears the session down. Every per-device query validates
// the index against the worker's processor count before asking for data.
package smi

import (
	"errors"

	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/session"
	"github.com/gpurelay/gpurelay/internal/wire"
)

// Status is the result code telemetry calls return.
type Status uint16

const (
	Success              = Status(wire.StatusSuccess)
	ErrorInvalidArgument = Status(wire.StatusInvalidArgument)
	ErrorOutOfRange      = Status(wire.StatusOutOfRange)
	ErrorNotInitialized  = Status(wire.StatusNotInitialized)
	ErrorInternal        = Status(wire.StatusInternal)

	ErrorConnectionFailed = Status(wire.StatusConnectionFailed)
	ErrorTimeout          = Status(wire.StatusTimeout)
	ErrorProtocol         = Status(wire.StatusProtocolError)
)

func (s Status) String() string {
	return wire.Status(s).String()
}

// Config overrides the environment-derived connection settings.
type Config struct {
	Host       string
	Port       int
	TimeoutSec int
	Debug      bool
}

// DeviceInfo is the static identity of one device.
type DeviceInfo struct {
	Name         string
	Serial       string
	VendorID     uint32
	DeviceID     uint32
	RevisionID   uint32
	ComputeUnits uint32
}

// Metrics is a point-in-time snapshot of one device.
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

// PowerInfo is the power envelope of one device.
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

// Client is an initialized telemetry session.
type Client struct {
	sess  *session.Session
	count int // cached processor count, -1 until fetched
}

// Init opens a telemetry session. A nil config takes everything from the
// environment. Connection failure is surfaced here, not on the first
// query.
func Init(cfg *Config) (*Client, Status) {
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
	c := &Client{sess: session.New(scfg), count: -1}
	if err := c.sess.Connect(); err != nil {
		c.sess.Close()
		return nil, statusOfErr(err)
	}
	status, _, _ := c.call(wire.OpSmiInit, nil)
	if status != Success {
		c.sess.Close()
		return nil, status
	}
	return c, Success
}

// Shutdown ends the telemetry session.
func (c *Client) Shutdown() Status {
	status, _, _ := c.call(wire.OpSmiShutdown, nil)
	c.sess.Close()
	return status
}

func statusOfErr(err error) Status {
	var aerr apperrors.Error
	if errors.As(err, &aerr) {
		return Status(aerr.StatusCode())
	}
	return ErrorConnectionFailed
}

func (c *Client) call(op wire.Opcode, args any) (Status, []byte, []byte) {
	st, ret, pl, err := c.sess.Call(op, args, nil)
	if err != nil {
		return statusOfErr(err), nil, nil
	}
	return Status(st), ret, pl
}

// ProcessorCount stores the number of devices the worker serves.
func (c *Client) ProcessorCount(count *int) Status {
	if count == nil {
		return ErrorInvalidArgument
	}
	status, ret, _ := c.call(wire.OpSmiProcessorCount, nil)
	if status != Success {
		return status
	}
	var out wire.SmiProcessorCountRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	c.count = int(out.Count)
	*count = c.count
	return Success
}

// checkIndex validates a device index against the processor count,
// fetching the count once. An out-of-range index never generates a
// per-device remote call.
func (c *Client) checkIndex(device int) Status {
	if device < 0 {
		return ErrorOutOfRange
	}
	if c.count < 0 {
		var n int
		if status := c.ProcessorCount(&n); status != Success {
			return status
		}
	}
	if device >= c.count {
		return ErrorOutOfRange
	}
	return Success
}

// DeviceInfo fills the static identity of the given device.
func (c *Client) DeviceInfo(info *DeviceInfo, device int) Status {
	if info == nil {
		return ErrorInvalidArgument
	}
	if status := c.checkIndex(device); status != Success {
		return status
	}
	status, ret, _ := c.call(wire.OpSmiDeviceInfo, &wire.SmiDeviceArgs{Device: uint32(device)})
	if status != Success {
		return status
	}
	var out wire.SmiDeviceInfoRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*info = DeviceInfo{
		Name:         wire.GetString(out.Name[:]),
		Serial:       wire.GetString(out.Serial[:]),
		VendorID:     out.VendorID,
		DeviceID:     out.DeviceID,
		RevisionID:   out.RevisionID,
		ComputeUnits: out.ComputeUnits,
	}
	return Success
}

// Metrics fills a metrics snapshot for the given device.
func (c *Client) Metrics(m *Metrics, device int) Status {
	if m == nil {
		return ErrorInvalidArgument
	}
	if status := c.checkIndex(device); status != Success {
		return status
	}
	status, ret, _ := c.call(wire.OpSmiMetrics, &wire.SmiDeviceArgs{Device: uint32(device)})
	if status != Success {
		return status
	}
	var out wire.SmiMetricsRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*m = Metrics{
		HotspotMilliC:  out.HotspotMilliC,
		PowerMilliW:    out.PowerMilliW,
		GfxActivityPct: out.GfxActivityPct,
		MemActivityPct: out.MemActivityPct,
		GfxClockMHz:    out.GfxClockMHz,
		MemClockMHz:    out.MemClockMHz,
		VramUsed:       out.VramUsed,
		VramTotal:      out.VramTotal,
	}
	return Success
}

// PowerInfo fills the power envelope of the given device.
func (c *Client) PowerInfo(p *PowerInfo, device int) Status {
	if p == nil {
		return ErrorInvalidArgument
	}
	if status := c.checkIndex(device); status != Success {
		return status
	}
	status, ret, _ := c.call(wire.OpSmiPowerInfo, &wire.SmiDeviceArgs{Device: uint32(device)})
	if status != Success {
		return status
	}
	var out wire.SmiPowerInfoRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*p = PowerInfo{
		CurrentMilliW:    out.CurrentMilliW,
		AverageMilliW:    out.AverageMilliW,
		CapMilliW:        out.CapMilliW,
		GfxVoltageMilliV: out.GfxVoltageMilliV,
		SocVoltageMilliV: out.SocVoltageMilliV,
		MemVoltageMilliV: out.MemVoltageMilliV,
	}
	return Success
}

// VramUsage fills the VRAM usage of the given device.
func (c *Client) VramUsage(u *VramUsage, device int) Status {
	if u == nil {
		return ErrorInvalidArgument
	}
	if status := c.checkIndex(device); status != Success {
		return status
	}
	status, ret, _ := c.call(wire.OpSmiVramUsage, &wire.SmiDeviceArgs{Device: uint32(device)})
	if status != Success {
		return status
	}
	var out wire.SmiVramUsageRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*u = VramUsage{Used: out.Used, Total: out.Total}
	return Success
}

// Activity fills the busy percentages of the given device.
func (c *Client) Activity(a *Activity, device int) Status {
	if a == nil {
		return ErrorInvalidArgument
	}
	if status := c.checkIndex(device); status != Success {
		return status
	}
	status, ret, _ := c.call(wire.OpSmiActivity, &wire.SmiDeviceArgs{Device: uint32(device)})
	if status != Success {
		return status
	}
	var out wire.SmiActivityRet
	if err := wire.DecodeArgs(ret, &out); err != nil {
		return ErrorProtocol
	}
	*a = Activity{GfxPct: out.GfxPct, MemPct: out.MemPct}
	return Success
}
