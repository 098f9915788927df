// Package session owns the client side of a worker connection: lazy
// connect, one serialized request/response round trip at a time, deadline
// enforcement, and invalidate-on-failure so the next call transparently
// redials. The stub layers above it never touch a socket.
package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/common/logging"
	"github.com/gpurelay/gpurelay/internal/wire"
)

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

var (
	ErrConnectionFailed = apperrors.New("session: could not reach worker").SetStatusCode(int(wire.StatusConnectionFailed))
	ErrTimeout          = apperrors.New("session: call timed out").SetStatusCode(int(wire.StatusTimeout))
	ErrProtocol         = apperrors.New("session: protocol error").SetStatusCode(int(wire.StatusProtocolError))
	ErrClosed           = apperrors.New("session: closed").SetStatusCode(int(wire.StatusConnectionFailed))
)

// Session is one long-lived connection to a worker. Calls are serialized:
// the protocol allows a single in-flight request per connection, so
// concurrent callers block on the session mutex rather than interleaving
// frames. Callers needing parallelism open one session per goroutine.
type Session struct {
	mu           sync.Mutex
	cfg          Config
	conn         net.Conn
	state        State
	lastActivity time.Time
	closed       bool
}

// New creates a session. No connection is made until the first Call; the
// telemetry surface dials eagerly via Connect instead.
func New(cfg Config) *Session {
	if cfg.Host == "" {
		cfg = DefaultConfig()
	}
	if cfg.Debug {
		logging.SetDebug(true)
	}
	return &Session{cfg: cfg, state: Disconnected}
}

// Config returns the session's configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the time of the last successful round trip.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Connect establishes the connection immediately. Used by short-lived
// callers that want connection failures surfaced at startup rather than on
// the first query.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConnectedLocked()
}

// Close tears the session down. A closed session fails all further calls.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.invalidateLocked()
	return nil
}

// Call performs one synchronous round trip: encode the argument block,
// write the framed request, block for the framed response or the
// configured timeout. Any I/O failure or timeout invalidates the session;
// the next Call dials fresh. There is no in-call retry.
func (s *Session) Call(op wire.Opcode, args any, payload []byte) (wire.Status, []byte, []byte, error) {
	var argBytes []byte
	if args != nil {
		var err error
		argBytes, err = wire.EncodeArgs(args)
		if err != nil {
			return wire.StatusProtocolError, nil, nil, ErrProtocol.Err(err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(); err != nil {
		return wire.StatusConnectionFailed, nil, nil, err
	}

	deadline := time.Now().Add(s.cfg.Timeout())
	if err := s.conn.SetDeadline(deadline); err != nil {
		s.invalidateLocked()
		return wire.StatusConnectionFailed, nil, nil, ErrConnectionFailed.Err(err)
	}

	log.Debug().Str("opcode", op.String()).Int("payload", len(payload)).Msg("sending request")

	if err := wire.WriteFrame(s.conn, uint16(op), argBytes, payload); err != nil {
		// The size checks fail before any byte reaches the socket; the
		// connection is still in sync and keeps serving later calls.
		if errors.Is(err, wire.ErrFrameTooLarge) || errors.Is(err, wire.ErrArgBlockSize) {
			return wire.StatusProtocolError, nil, nil, ErrProtocol.Err(err)
		}
		st, cerr := s.classifyLocked(err)
		return st, nil, nil, cerr
	}
	frame, err := wire.ReadFrame(s.conn)
	if err != nil {
		st, cerr := s.classifyLocked(err)
		return st, nil, nil, cerr
	}

	s.lastActivity = time.Now()
	return wire.Status(frame.Code), frame.Args, frame.Payload, nil
}

// ensureConnectedLocked establishes the connection when absent. The caller
// holds the mutex.
func (s *Session) ensureConnectedLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.state == Connected {
		return nil
	}
	s.state = Connecting
	conn, err := net.DialTimeout("tcp", s.cfg.Addr(), s.cfg.Timeout())
	if err != nil {
		s.state = Disconnected
		return ErrConnectionFailed.Err(err)
	}
	log.Debug().Str("addr", s.cfg.Addr()).Msg("connected to worker")
	s.conn = conn
	s.state = Connected
	return nil
}

// invalidateLocked drops the connection. A partially-read response cannot
// be trusted, so there is no mid-stream resynchronization; the next call
// dials fresh.
func (s *Session) invalidateLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = Disconnected
}

// classifyLocked maps an I/O failure onto the client status taxonomy and
// invalidates the session.
func (s *Session) classifyLocked(err error) (wire.Status, error) {
	s.invalidateLocked()

	// A frame truncated by the read deadline carries the net timeout
	// underneath, so the timeout check runs first.
	if isTimeout(err) {
		log.Debug().Err(err).Msg("call timed out")
		return wire.StatusTimeout, ErrTimeout.Err(err)
	}
	if errors.Is(err, wire.ErrBadMagic) || errors.Is(err, wire.ErrBadVersion) ||
		errors.Is(err, wire.ErrFrameTooLarge) || errors.Is(err, wire.ErrTruncated) {
		log.Debug().Err(err).Msg("malformed response frame")
		return wire.StatusProtocolError, ErrProtocol.Err(err)
	}
	log.Debug().Err(err).Msg("transport failure")
	return wire.StatusConnectionFailed, ErrConnectionFailed.Err(err)
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var aerr apperrors.Error
	if errors.As(err, &aerr) {
		for _, wrapped := range aerr.UnwrapAll() {
			if errors.As(wrapped, &nerr) && nerr.Timeout() {
				return true
			}
		}
	}
	return false
}
