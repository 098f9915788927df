package wire

// Opcode identifies a request on the wire. The opcode space is partitioned
// into two disjoint namespaces so the compute and telemetry surfaces can
// version independently: compute calls live in 0x01xx, telemetry calls in
// 0x02xx.
type Opcode uint16

const (
	// Compute-runtime namespace.
	OpDeviceCount       Opcode = 0x0101
	OpSetDevice         Opcode = 0x0102
	OpDeviceProperties  Opcode = 0x0103
	OpRuntimeVersion    Opcode = 0x0104
	OpMemAlloc          Opcode = 0x0105
	OpMemFree           Opcode = 0x0106
	OpMemcpyHtoD        Opcode = 0x0107
	OpMemcpyDtoH        Opcode = 0x0108
	OpStreamCreate      Opcode = 0x0109
	OpStreamDestroy     Opcode = 0x010A
	OpEventCreate       Opcode = 0x010B
	OpEventDestroy      Opcode = 0x010C
	OpModuleLoad        Opcode = 0x010D
	OpModuleGetFunction Opcode = 0x010E
	OpLaunchKernel      Opcode = 0x010F

	// Telemetry namespace.
	OpSmiInit           Opcode = 0x0201
	OpSmiShutdown       Opcode = 0x0202
	OpSmiProcessorCount Opcode = 0x0203
	OpSmiDeviceInfo     Opcode = 0x0204
	OpSmiMetrics        Opcode = 0x0205
	OpSmiPowerInfo      Opcode = 0x0206
	OpSmiVramUsage      Opcode = 0x0207
	OpSmiActivity       Opcode = 0x0208
)

// OpcodeNames maps opcodes to human-readable names for logging and
// diagnostics.
var OpcodeNames = map[Opcode]string{
	OpDeviceCount:       "DEVICE_COUNT",
	OpSetDevice:         "SET_DEVICE",
	OpDeviceProperties:  "DEVICE_PROPERTIES",
	OpRuntimeVersion:    "RUNTIME_VERSION",
	OpMemAlloc:          "MEM_ALLOC",
	OpMemFree:           "MEM_FREE",
	OpMemcpyHtoD:        "MEMCPY_HTOD",
	OpMemcpyDtoH:        "MEMCPY_DTOH",
	OpStreamCreate:      "STREAM_CREATE",
	OpStreamDestroy:     "STREAM_DESTROY",
	OpEventCreate:       "EVENT_CREATE",
	OpEventDestroy:      "EVENT_DESTROY",
	OpModuleLoad:        "MODULE_LOAD",
	OpModuleGetFunction: "MODULE_GET_FUNCTION",
	OpLaunchKernel:      "LAUNCH_KERNEL",
	OpSmiInit:           "SMI_INIT",
	OpSmiShutdown:       "SMI_SHUTDOWN",
	OpSmiProcessorCount: "SMI_PROCESSOR_COUNT",
	OpSmiDeviceInfo:     "SMI_DEVICE_INFO",
	OpSmiMetrics:        "SMI_METRICS",
	OpSmiPowerInfo:      "SMI_POWER_INFO",
	OpSmiVramUsage:      "SMI_VRAM_USAGE",
	OpSmiActivity:       "SMI_ACTIVITY",
}

func (o Opcode) String() string {
	if name, ok := OpcodeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsCompute reports whether the opcode belongs to the compute-runtime
// namespace.
func (o Opcode) IsCompute() bool {
	return o&0xFF00 == 0x0100
}

// IsTelemetry reports whether the opcode belongs to the telemetry namespace.
func (o Opcode) IsTelemetry() bool {
	return o&0xFF00 == 0x0200
}
