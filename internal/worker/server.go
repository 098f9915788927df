// Package worker implements the long-running service colocated with the
// device. It accepts client connections, reads one framed request at a
// time, forwards it into the local runtime or telemetry backend, and writes
// the framed response back. A client's misbehavior ends that client's
// connection, never the worker.
package worker

import (
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/device"
	"github.com/gpurelay/gpurelay/internal/wire"
)

// DefaultIdleTimeout bounds how long a connection may sit silent before
// the worker reclaims the slot. A dead peer that never resets the socket
// would otherwise hold it forever.
const DefaultIdleTimeout = 5 * time.Minute

// Options configures a Server.
type Options struct {
	Addr        string        // listen address, host:port
	IdleTimeout time.Duration // zero means DefaultIdleTimeout
}

// Server is the worker's accept loop plus per-connection dispatch.
type Server struct {
	runtime   device.Runtime
	telemetry device.Telemetry
	opts      Options

	mu     sync.Mutex
	ln     net.Listener
	closed bool
	wg     sync.WaitGroup
}

// New creates a server forwarding into the given backends.
func New(rt device.Runtime, tel device.Telemetry, opts Options) *Server {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Server{runtime: rt, telemetry: tel, opts: opts}
}

// Listen binds the listening socket. Serve must be called afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Info().Str("addr", ln.Addr().String()).Msg("worker listening")
	return nil
}

// Addr returns the bound listen address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the accept loop until Shutdown closes the listener. Failures
// on individual connections are contained; the loop itself only ends with
// the listener.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("serve called before listen")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown closes the listener and waits for in-flight connections to
// finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
	log.Info().Msg("worker stopped")
}

// connState is the per-connection dispatch context: the handle table, the
// selected device, and the telemetry lifecycle flag. It exists only for
// the lifetime of its connection.
type connState struct {
	srv      *Server
	table    *handleTable
	device   int
	smiReady bool
}

func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.NewString()[:8]
	slog := log.With().Str("conn", connID).Str("peer", conn.RemoteAddr().String()).Logger()
	slog.Info().Msg("client connected")

	st := &connState{srv: s, table: newHandleTable()}

	defer func() {
		if r := recover(); r != nil {
			slog.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack_trace", string(debug.Stack())).
				Msg("panic in dispatch, closing connection")
		}
		conn.Close()
		st.table.teardown()
		slog.Info().Msg("client disconnected")
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout)); err != nil {
			return
		}
		req, err := wire.ReadFrame(conn)
		if err != nil {
			switch {
			case err == io.EOF:
				// clean disconnect
			case errors.Is(err, net.ErrClosed):
			default:
				slog.Debug().Err(err).Msg("dropping connection")
			}
			return
		}

		op := wire.Opcode(req.Code)
		status, ret, payload := st.dispatch(op, req)
		slog.Debug().
			Str("opcode", op.String()).
			Str("status", status.String()).
			Msg("dispatched")

		if err := conn.SetWriteDeadline(time.Now().Add(s.opts.IdleTimeout)); err != nil {
			return
		}
		if err := wire.WriteFrame(conn, uint16(status), ret, payload); err != nil {
			slog.Debug().Err(err).Msg("response write failed")
			return
		}
	}
}

// dispatch routes by opcode namespace. Only the adapters below know
// individual call semantics.
func (st *connState) dispatch(op wire.Opcode, req *wire.Frame) (wire.Status, []byte, []byte) {
	switch {
	case op.IsCompute():
		return st.dispatchCompute(op, req)
	case op.IsTelemetry():
		return st.dispatchTelemetry(op, req)
	default:
		return wire.StatusInvalidArgument, nil, nil
	}
}

// statusOf maps a backend error onto a wire status. Backend errors built
// on apperrors carry their status; everything else is internal.
func statusOf(err error) wire.Status {
	var aerr apperrors.Error
	if errors.As(err, &aerr) {
		code := wire.Status(aerr.StatusCode())
		if code.Remote() && code != wire.StatusSuccess {
			return code
		}
	}
	return wire.StatusInternal
}

// encodeRet serializes a return block, downgrading encoding failures to an
// internal status so the connection stays usable.
func encodeRet(v any) (wire.Status, []byte) {
	raw, err := wire.EncodeArgs(v)
	if err != nil {
		log.Error().Err(err).Msg("return block encode failed")
		return wire.StatusInternal, nil
	}
	return wire.StatusSuccess, raw
}
