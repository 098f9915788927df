package wire

// Status is the result code carried in every response frame. Values below
// 100 travel on the wire; values from 100 up are minted client-side for
// transport-level failures and never appear in a frame written by the
// worker.
type Status uint16

const (
	StatusSuccess         Status = 0
	StatusInvalidArgument Status = 1
	StatusOutOfRange      Status = 2
	StatusOutOfMemory     Status = 3
	StatusInvalidHandle   Status = 4
	StatusInvalidArch     Status = 5
	StatusNotInitialized  Status = 6
	StatusInternal        Status = 7

	// Client-side statuses. The worker never writes these.
	StatusConnectionFailed Status = 100
	StatusTimeout          Status = 101
	StatusProtocolError    Status = 102
)

var statusNames = map[Status]string{
	StatusSuccess:          "SUCCESS",
	StatusInvalidArgument:  "INVALID_ARGUMENT",
	StatusOutOfRange:       "OUT_OF_RANGE",
	StatusOutOfMemory:      "OUT_OF_MEMORY",
	StatusInvalidHandle:    "INVALID_HANDLE",
	StatusInvalidArch:      "INVALID_ARCH",
	StatusNotInitialized:   "NOT_INITIALIZED",
	StatusInternal:         "INTERNAL",
	StatusConnectionFailed: "CONNECTION_FAILED",
	StatusTimeout:          "TIMEOUT",
	StatusProtocolError:    "PROTOCOL_ERROR",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Remote reports whether the status originated from the worker rather than
// from the client's own transport layer.
func (s Status) Remote() bool {
	return s < 100
}
