package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/auth"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/danmuck/zcnbind/internal/protocol/frame"
	"github.com/danmuck/zcnbind/internal/protocol/schema"
	"github.com/danmuck/zcnbind/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

var ErrServerClosed = errors.New("transport: server closed")

// Server serves one foreign heap to any number of bridge connections.
type Server struct {
	heap   *foreign.Heap
	cfg    wire.Config
	limits frame.Limits

	mu       sync.Mutex
	ln       net.Listener
	conns    map[uint64]*serverConn
	connSeq  uint64
	closed   bool
	wg       sync.WaitGroup
	unlisten func()

	served atomic.Int64
	record func(op string, d time.Duration, err error)
	auth   auth.Validator
}

type ServerOption func(*Server)

// WithAuth requires every call frame to carry a token accepted by v.
func WithAuth(v auth.Validator) ServerOption {
	return func(s *Server) {
		s.auth = v
	}
}

// WithCallRecorder observes every served call.
func WithCallRecorder(fn func(op string, d time.Duration, err error)) ServerOption {
	return func(s *Server) {
		s.record = fn
	}
}

type serverConn struct {
	id      uint64
	conn    net.Conn
	writeMu sync.Mutex

	refMu sync.Mutex
	owned map[abi.Handle]int32
}

func NewServer(heap *foreign.Heap, cfg wire.Config, opts ...ServerOption) *Server {
	s := &Server{
		heap:   heap,
		cfg:    cfg.WithDefaults(),
		limits: frame.DefaultLimits(),
		conns:  make(map[uint64]*serverConn),
		auth:   auth.FromToken(cfg.AuthToken),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unlisten = heap.OnRelease(s.broadcastRelease)
	return s
}

// ListenAndServe listens on addr and serves until ctx is done or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.cfg.ValidateServerTransport(); err != nil {
		return err
	}
	tlsCfg, err := serverTLS(s.cfg.TLS)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s.Serve(ln)
}

// Serve accepts connections on ln until it fails or the server is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()
	log.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return err
		}
		s.ServeConn(conn)
	}
}

// ServeConn serves one already established connection in its own goroutine.
func (s *Server) ServeConn(conn net.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.connSeq++
	sc := &serverConn{id: s.connSeq, conn: conn, owned: make(map[abi.Handle]int32)}
	s.conns[sc.id] = sc
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.serve(sc)
	}()
}

// Address reports the bound listener address, or "" before Serve.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Served reports how many calls have been answered.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Connections reports how many connections are open.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting, drops every connection and waits for their teardown.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	conns := make([]*serverConn, 0, len(s.conns))
	for _, sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, sc := range conns {
		_ = sc.conn.Close()
	}
	s.wg.Wait()
	s.unlisten()
	return nil
}

func (s *Server) serve(sc *serverConn) {
	remote := sc.conn.RemoteAddr().String()
	log.Debug().Uint64("conn", sc.id).Str("remote", remote).Msg("bridge connection open")
	defer func() {
		s.mu.Lock()
		delete(s.conns, sc.id)
		s.mu.Unlock()
		_ = sc.conn.Close()
		dropped := s.dropOwned(sc)
		log.Debug().Uint64("conn", sc.id).Str("remote", remote).Int("dropped_refs", dropped).Msg("bridge connection closed")
	}()

	for {
		f, err := wire.ReadFrame(sc.conn, s.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Uint64("conn", sc.id).Err(err).Msg("bridge read failed")
			}
			return
		}
		start := time.Now()
		reply := s.handle(sc, f)
		if s.record != nil {
			s.record(schema.Name(f.Header.MessageType), time.Since(start), reply.Err)
		}
		payload, err := wire.EncodeReplyFrame(f.Header.MessageID, reply)
		if err != nil {
			payload, err = wire.EncodeReplyFrame(f.Header.MessageID, wire.Reply{Err: err})
			if err != nil {
				log.Error().Uint64("conn", sc.id).Err(err).Msg("encode reply failed")
				return
			}
		}
		if err := sc.write(payload, s.cfg.WriteTimeout); err != nil {
			log.Warn().Uint64("conn", sc.id).Err(err).Msg("bridge write failed")
			return
		}
		s.served.Add(1)
	}
}

func (s *Server) handle(sc *serverConn, f frame.Frame) wire.Reply {
	call, err := wire.DecodeCallFrame(f)
	if err != nil {
		return wire.Reply{Err: fmt.Errorf("%w: %v", abi.ErrInvalidArgument, err)}
	}
	if err := auth.Check(s.auth, call.Auth); err != nil {
		log.Warn().Uint64("conn", sc.id).Str("op", schema.Name(call.Op)).Msg("bridge call rejected")
		return wire.Reply{Err: err}
	}
	log.Trace().Uint64("conn", sc.id).Str("op", schema.Name(call.Op)).Int32("handle", int32(call.Handle)).Msg("bridge call")

	switch call.Op {
	case schema.MsgNew:
		h, err := s.heap.New(call.Class, call.Values)
		if err != nil {
			return wire.Reply{Err: err}
		}
		sc.own(h, 1)
		return wire.Reply{Handles: []abi.Handle{h}}
	case schema.MsgGet:
		v, err := s.heap.Get(call.Handle, call.Field)
		if err != nil {
			return wire.Reply{Err: err}
		}
		return wire.Reply{Values: []abi.Value{v}}
	case schema.MsgSet:
		return wire.Reply{Err: s.heap.Set(call.Handle, call.Field, call.Values[0])}
	case schema.MsgIncRef:
		if err := s.heap.IncRef(call.Handle); err != nil {
			return wire.Reply{Err: err}
		}
		sc.own(call.Handle, 1)
		return wire.Reply{}
	case schema.MsgDecRef:
		if !sc.disown(call.Handle) {
			return wire.Reply{Err: fmt.Errorf("%w: %s not held by this connection", abi.ErrStaleHandle, call.Handle)}
		}
		return wire.Reply{Err: s.heap.DecRef(call.Handle)}
	case schema.MsgInvoke:
		for _, v := range call.Values {
			if v.Kind == abi.KindRef && !sc.holds(v.Ref) {
				return wire.Reply{Err: fmt.Errorf("%w: %s not held by this connection", abi.ErrStaleHandle, v.Ref)}
			}
		}
		handles, err := s.heap.Invoke(call.Function, call.Values)
		// The heap consumes ref arguments whether or not the call succeeds.
		for _, v := range call.Values {
			if v.Kind == abi.KindRef {
				sc.disown(v.Ref)
			}
		}
		if err != nil {
			return wire.Reply{Err: err}
		}
		for _, h := range handles {
			sc.own(h, 1)
		}
		return wire.Reply{Handles: handles}
	}
	return wire.Reply{Err: fmt.Errorf("%w: op %d", abi.ErrInvalidArgument, call.Op)}
}

// dropOwned releases every reference the connection still holds.
func (s *Server) dropOwned(sc *serverConn) int {
	sc.refMu.Lock()
	owned := sc.owned
	sc.owned = make(map[abi.Handle]int32)
	sc.refMu.Unlock()

	dropped := 0
	for h, n := range owned {
		for ; n > 0; n-- {
			if err := s.heap.DecRef(h); err != nil {
				break
			}
			dropped++
		}
	}
	return dropped
}

func (s *Server) broadcastRelease(h abi.Handle) {
	payload, err := wire.EncodeReleasedFrame(h)
	if err != nil {
		log.Error().Err(err).Msg("encode release notification failed")
		return
	}
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for _, sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()
	for _, sc := range conns {
		if err := sc.write(payload, s.cfg.WriteTimeout); err != nil {
			log.Debug().Uint64("conn", sc.id).Err(err).Msg("release notification dropped")
		}
	}
}

func (sc *serverConn) write(payload []byte, timeout time.Duration) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	_ = sc.conn.SetWriteDeadline(time.Now().Add(timeout))
	_, err := sc.conn.Write(payload)
	return err
}

func (sc *serverConn) own(h abi.Handle, n int32) {
	sc.refMu.Lock()
	sc.owned[h] += n
	sc.refMu.Unlock()
}

func (sc *serverConn) holds(h abi.Handle) bool {
	sc.refMu.Lock()
	defer sc.refMu.Unlock()
	return sc.owned[h] > 0
}

func (sc *serverConn) disown(h abi.Handle) bool {
	sc.refMu.Lock()
	defer sc.refMu.Unlock()
	n := sc.owned[h]
	if n <= 0 {
		return false
	}
	if n == 1 {
		delete(sc.owned, h)
	} else {
		sc.owned[h] = n - 1
	}
	return true
}
