package session

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpurelay/gpurelay/internal/wire"
)

// echoServer accepts connections and answers every request with a success
// frame echoing the request payload. Behavior is tweakable per test.
type echoServer struct {
	ln       net.Listener
	withhold bool // read requests but never respond
	mu       sync.Mutex
	conns    []net.Conn
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &echoServer{ln: ln}
	go s.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *echoServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *echoServer) serve(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		if s.withhold {
			continue
		}
		if err := wire.WriteFrame(conn, uint16(wire.StatusSuccess), f.Args, f.Payload); err != nil {
			return
		}
	}
}

func (s *echoServer) dropConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *echoServer) config() Config {
	addr := s.ln.Addr().(*net.TCPAddr)
	return Config{Host: "127.0.0.1", Port: addr.Port, TimeoutSec: 2}
}

func TestCallRoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	sess := New(srv.config())
	defer sess.Close()

	assert.Equal(t, Disconnected, sess.State())

	st, _, payload, err := sess.Call(wire.OpDeviceCount, nil, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, st)
	assert.Equal(t, []byte("ping"), payload)
	assert.Equal(t, Connected, sess.State())
	assert.False(t, sess.LastActivity().IsZero())
}

func TestLazyConnectAndReconnect(t *testing.T) {
	srv := newEchoServer(t)
	sess := New(srv.config())
	defer sess.Close()

	_, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	require.NoError(t, err)

	// Force a transport failure mid-session.
	srv.dropConns()

	_, _, _, err = sess.Call(wire.OpDeviceCount, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, Disconnected, sess.State())

	// The very next call transparently re-establishes the session.
	st, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, st)
	assert.Equal(t, Connected, sess.State())
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	sess := New(Config{Host: "127.0.0.1", Port: addr.Port, TimeoutSec: 1})
	defer sess.Close()

	st, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	assert.Equal(t, wire.StatusConnectionFailed, st)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestTimeoutInvalidatesSession(t *testing.T) {
	srv := newEchoServer(t)
	srv.withhold = true
	cfg := srv.config()
	cfg.TimeoutSec = 1
	sess := New(cfg)
	defer sess.Close()

	start := time.Now()
	st, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	elapsed := time.Since(start)

	assert.Equal(t, wire.StatusTimeout, st)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, Disconnected, sess.State())
	// Within a bounded margin of the configured timeout.
	assert.Less(t, elapsed, 3*time.Second)
	assert.GreaterOrEqual(t, elapsed, 1*time.Second)
}

func TestConcurrentCallsSerialize(t *testing.T) {
	srv := newEchoServer(t)
	sess := New(srv.config())
	defer sess.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, _, _, err := sess.Call(wire.OpDeviceCount, nil, []byte("x"))
			if err != nil {
				errs <- err
				return
			}
			if st != wire.StatusSuccess {
				errs <- errors.New("unexpected status")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call failed: %v", err)
	}
}

func TestClosedSessionFailsCalls(t *testing.T) {
	srv := newEchoServer(t)
	sess := New(srv.config())
	require.NoError(t, sess.Close())

	_, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOversizedRequestKeepsSession(t *testing.T) {
	srv := newEchoServer(t)
	sess := New(srv.config())
	defer sess.Close()

	_, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	require.NoError(t, err)

	// An argument block beyond the u16 length field fails before any byte
	// reaches the socket, so the connection stays usable.
	st, _, _, err := sess.Call(wire.OpDeviceCount, &struct{ Blob [70000]byte }{}, nil)
	assert.Equal(t, wire.StatusProtocolError, st)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, Connected, sess.State())

	st, _, _, err = sess.Call(wire.OpDeviceCount, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, st)
}

func TestMalformedResponseIsProtocolError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := wire.ReadFrame(conn); err != nil {
			return
		}
		conn.Write([]byte("this is not a frame header!!"))
		// Keep the conn open so the client reads garbage, not EOF.
		io.Copy(io.Discard, conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	sess := New(Config{Host: "127.0.0.1", Port: addr.Port, TimeoutSec: 2})
	defer sess.Close()

	st, _, _, err := sess.Call(wire.OpDeviceCount, nil, nil)
	assert.Equal(t, wire.StatusProtocolError, st)
	assert.ErrorIs(t, err, ErrProtocol)
}
