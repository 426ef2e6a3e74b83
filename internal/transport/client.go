package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/bind"
	"github.com/danmuck/zcnbind/internal/protocol/frame"
	"github.com/danmuck/zcnbind/internal/protocol/schema"
	"github.com/danmuck/zcnbind/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

// Client is a Boundary over one bridge connection.
type Client struct {
	conn   net.Conn
	cfg    wire.Config
	limits frame.Limits

	writeMu sync.Mutex
	seq     atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan wire.Reply
	failure error
	done    chan struct{}

	listenMu  sync.RWMutex
	listenSeq uint64
	listeners map[uint64]func(abi.Handle)
}

var _ bind.Boundary = (*Client)(nil)

// NewClient takes ownership of conn and starts its reader.
func NewClient(conn net.Conn, cfg wire.Config) *Client {
	c := &Client{
		conn:      conn,
		cfg:       cfg.WithDefaults(),
		limits:    frame.DefaultLimits(),
		pending:   make(map[uint64]chan wire.Reply),
		done:      make(chan struct{}),
		listeners: make(map[uint64]func(abi.Handle)),
	}
	go c.readLoop()
	return c
}

// Dial connects to addr, retrying with backoff up to cfg.MaxDialAttempts.
func Dial(ctx context.Context, addr string, cfg wire.Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	tlsCfg, err := clientTLS(cfg.TLS, addr)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxDialAttempts; attempt++ {
		conn, err := dialOnce(ctx, addr, cfg.DialTimeout, tlsCfg)
		if err == nil {
			log.Info().Str("addr", addr).Int("attempt", attempt).Msg("bridge connected")
			return NewClient(conn, cfg), nil
		}
		lastErr = err
		if attempt == cfg.MaxDialAttempts {
			break
		}
		delay := wire.NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().Str("addr", addr).Int("attempt", attempt).Dur("retry_in", delay).Err(err).Msg("bridge dial failed")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", abi.ErrBoundaryUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w: dial %s: %v", abi.ErrBoundaryUnavailable, addr, lastErr)
}

func dialOnce(ctx context.Context, addr string, timeout time.Duration, tlsCfg *tls.Config) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout}
	if tlsCfg == nil {
		return d.DialContext(ctx, "tcp", addr)
	}
	td := &tls.Dialer{NetDialer: d, Config: tlsCfg}
	return td.DialContext(ctx, "tcp", addr)
}

func (c *Client) New(class string, values []abi.Value) (abi.Handle, error) {
	r, err := c.roundTrip(wire.Call{Op: schema.MsgNew, Class: class, Values: values})
	if err != nil {
		return abi.NullHandle, err
	}
	if len(r.Handles) != 1 {
		return abi.NullHandle, fmt.Errorf("%w: new returned %d handles", abi.ErrBoundaryUnavailable, len(r.Handles))
	}
	return r.Handles[0], nil
}

func (c *Client) Get(h abi.Handle, field string) (abi.Value, error) {
	r, err := c.roundTrip(wire.Call{Op: schema.MsgGet, Handle: h, Field: field})
	if err != nil {
		return abi.Value{}, err
	}
	if len(r.Values) != 1 {
		return abi.Value{}, fmt.Errorf("%w: get returned %d values", abi.ErrBoundaryUnavailable, len(r.Values))
	}
	return r.Values[0], nil
}

func (c *Client) Set(h abi.Handle, field string, v abi.Value) error {
	_, err := c.roundTrip(wire.Call{Op: schema.MsgSet, Handle: h, Field: field, Values: []abi.Value{v}})
	return err
}

func (c *Client) IncRef(h abi.Handle) error {
	_, err := c.roundTrip(wire.Call{Op: schema.MsgIncRef, Handle: h})
	return err
}

func (c *Client) DecRef(h abi.Handle) error {
	_, err := c.roundTrip(wire.Call{Op: schema.MsgDecRef, Handle: h})
	return err
}

func (c *Client) Invoke(fn string, args []abi.Value) ([]abi.Handle, error) {
	r, err := c.roundTrip(wire.Call{Op: schema.MsgInvoke, Function: fn, Values: args})
	if err != nil {
		return nil, err
	}
	return r.Handles, nil
}

func (c *Client) OnRelease(fn func(abi.Handle)) func() {
	c.listenMu.Lock()
	c.listenSeq++
	id := c.listenSeq
	c.listeners[id] = fn
	c.listenMu.Unlock()
	return func() {
		c.listenMu.Lock()
		delete(c.listeners, id)
		c.listenMu.Unlock()
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	c.fail(errClientClosed)
	return nil
}

var errClientClosed = errors.New("transport: client closed")

func (c *Client) roundTrip(call wire.Call) (wire.Reply, error) {
	id := c.seq.Add(1)
	call.Auth = c.cfg.AuthToken
	payload, err := wire.EncodeCallFrame(id, call)
	if err != nil {
		return wire.Reply{}, fmt.Errorf("%w: %v", abi.ErrInvalidArgument, err)
	}

	ch := make(chan wire.Reply, 1)
	c.mu.Lock()
	if c.failure != nil {
		err := c.failure
		c.mu.Unlock()
		return wire.Reply{}, unavailable(err)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_, err = c.conn.Write(payload)
	c.writeMu.Unlock()
	if err != nil {
		c.fail(err)
		return wire.Reply{}, unavailable(err)
	}

	var timeout <-chan time.Time
	if c.cfg.CallTimeout > 0 {
		timer := time.NewTimer(c.cfg.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case r := <-ch:
		return r, r.Err
	case <-timeout:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return wire.Reply{}, fmt.Errorf("%w: %s call timed out after %v", abi.ErrBoundaryUnavailable, schema.Name(call.Op), c.cfg.CallTimeout)
	}
}

func (c *Client) readLoop() {
	for {
		f, err := wire.ReadFrame(c.conn, c.limits)
		if err != nil {
			c.fail(err)
			return
		}
		if f.Header.MessageType == schema.MsgReleased {
			h, err := wire.DecodeReleasedFrame(f)
			if err != nil {
				log.Warn().Err(err).Msg("bad release notification")
				continue
			}
			c.dispatchRelease(h)
			continue
		}
		if !f.Header.IsResponse() {
			log.Warn().Str("type", schema.Name(f.Header.MessageType)).Msg("dropping non-response frame")
			continue
		}
		r, err := wire.DecodeReplyFrame(f)
		if err != nil {
			r = wire.Reply{Err: unavailable(err)}
		}
		c.mu.Lock()
		ch, ok := c.pending[f.Header.MessageID]
		delete(c.pending, f.Header.MessageID)
		c.mu.Unlock()
		if !ok {
			log.Warn().Uint64("message_id", f.Header.MessageID).Msg("reply without pending call")
			continue
		}
		ch <- r
	}
}

func (c *Client) dispatchRelease(h abi.Handle) {
	c.listenMu.RLock()
	fns := make([]func(abi.Handle), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenMu.RUnlock()
	for _, fn := range fns {
		fn(h)
	}
}

// fail closes the connection once and fails every pending call.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	if c.failure != nil {
		c.mu.Unlock()
		return
	}
	c.failure = cause
	pending := c.pending
	c.pending = make(map[uint64]chan wire.Reply)
	c.mu.Unlock()

	_ = c.conn.Close()
	for _, ch := range pending {
		ch <- wire.Reply{Err: unavailable(cause)}
	}
	close(c.done)
	if !errors.Is(cause, errClientClosed) {
		log.Warn().Err(cause).Msg("bridge connection lost")
	}
}

func unavailable(cause error) error {
	if errors.Is(cause, abi.ErrBoundaryUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %v", abi.ErrBoundaryUnavailable, cause)
}
