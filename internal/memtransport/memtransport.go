// Package memtransport is an in-process stand-in for a real IPC
// transport. It wires vfsglue.Endpoint/Session/DataWriter/DataReader
// together over Go channels so tests can drive a real dispatch loop,
// including mount-point forwarding between two independently served
// connections, without a kernel on either end.
package memtransport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/helenos-go/vfsglue"
)

// callCtx is one in-flight request: the request itself, the channel its
// eventual reply (or Forward's rerouted reply) is delivered on, and any
// pending data handshake attached to it.
type callCtx struct {
	req       vfsglue.Request
	replyCh   chan replyMsg
	dataWrite *dataWriter
	dataRead  *dataReader
}

type replyMsg struct {
	rc      vfsglue.Errno
	results []uint64
}

var callIDs uint64

func nextCallID() uint64 {
	return atomic.AddUint64(&callIDs, 1)
}

// Endpoint is the server side of one logical connection: what a
// (*vfsglue.Connection).Serve loop reads requests from and replies on.
// It implements vfsglue.Endpoint.
type Endpoint struct {
	requests chan *callCtx
	closed   chan struct{}
	closeOne sync.Once

	mu      sync.Mutex
	current *callCtx
}

// NewEndpoint creates a server-side endpoint with the given inbound
// queue depth.
func NewEndpoint(queue int) *Endpoint {
	return &Endpoint{
		requests: make(chan *callCtx, queue),
		closed:   make(chan struct{}),
	}
}

// Close causes a subsequent Receive to return MethodTerminate, the way
// a severed connection does.
func (e *Endpoint) Close() {
	e.closeOne.Do(func() { close(e.closed) })
}

func (e *Endpoint) Receive(ctx context.Context) (vfsglue.Request, error) {
	select {
	case cc := <-e.requests:
		e.mu.Lock()
		e.current = cc
		e.mu.Unlock()
		return cc.req, nil
	case <-e.closed:
		return vfsglue.Request{Method: vfsglue.MethodTerminate}, nil
	case <-ctx.Done():
		return vfsglue.Request{}, ctx.Err()
	}
}

func (e *Endpoint) PendingDataWrite(ctx context.Context) (vfsglue.DataWriter, error) {
	e.mu.Lock()
	cc := e.current
	e.mu.Unlock()
	if cc == nil || cc.dataWrite == nil {
		return nil, nil
	}
	return cc.dataWrite, nil
}

func (e *Endpoint) PendingDataRead(ctx context.Context) (vfsglue.DataReader, error) {
	e.mu.Lock()
	cc := e.current
	e.mu.Unlock()
	if cc == nil || cc.dataRead == nil {
		return nil, nil
	}
	return cc.dataRead, nil
}

func (e *Endpoint) Reply(ctx context.Context, callID uint64, rc vfsglue.Errno, results []uint64) error {
	e.mu.Lock()
	cc := e.current
	e.current = nil
	e.mu.Unlock()
	if cc == nil {
		return nil
	}
	cc.replyCh <- replyMsg{rc: rc, results: results}
	return nil
}

// Forward implements vfsglue.Forwarder's "route-from-me" semantics by
// re-addressing the current call's own reply channel to a fresh LOOKUP
// sent at sess's target endpoint: whichever connection eventually
// answers that LOOKUP writes directly into the channel the original
// caller is already blocked on.
func (e *Endpoint) Forward(ctx context.Context, sess vfsglue.Session, first, length uint32, serviceID vfsglue.ServiceID, index vfsglue.NodeIndex, flags vfsglue.LookupFlags) error {
	e.mu.Lock()
	cc := e.current
	e.current = nil
	e.mu.Unlock()
	if cc == nil {
		return nil
	}

	s, ok := sess.(*Session)
	if !ok || s == nil {
		cc.replyCh <- replyMsg{rc: vfsglue.EIO}
		return nil
	}

	fwd := &callCtx{
		req: vfsglue.Request{
			CallID: nextCallID(),
			Method: vfsglue.MethodLookup,
			Args:   [5]uint64{uint64(first), uint64(length), uint64(serviceID), uint64(index), uint64(flags)},
		},
		replyCh: cc.replyCh,
	}
	s.target.requests <- fwd
	return nil
}

// Session is the client side of a connection: a handle another
// filesystem instance (or test driver) uses to call into an Endpoint.
// It implements vfsglue.Session.
type Session struct {
	id     uuid.UUID
	target *Endpoint
}

// NewSession creates a session addressed at target.
func NewSession(target *Endpoint) *Session {
	return &Session{id: uuid.New(), target: target}
}

// ID is the session's opaque token, analogous to the source's session
// handle.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Clone(ctx context.Context) (vfsglue.Session, error) {
	return &Session{id: uuid.New(), target: s.target}, nil
}

func (s *Session) call(ctx context.Context, cc *callCtx) ([]uint64, vfsglue.Errno, error) {
	select {
	case s.target.requests <- cc:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	select {
	case r := <-cc.replyCh:
		return r.results, r.rc, nil
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (s *Session) Call(ctx context.Context, method vfsglue.Method, args [5]uint64) ([]uint64, vfsglue.Errno, error) {
	cc := &callCtx{
		req:     vfsglue.Request{CallID: nextCallID(), Method: method, Args: args},
		replyCh: make(chan replyMsg, 1),
	}
	return s.call(ctx, cc)
}

func (s *Session) ForwardDataWrite(ctx context.Context, method vfsglue.Method, arg0 uint64, w vfsglue.DataWriter) ([]uint64, vfsglue.Errno, error) {
	dw, _ := toMemDataWriter(w)
	cc := &callCtx{
		req:       vfsglue.Request{CallID: nextCallID(), Method: method, Args: [5]uint64{arg0}},
		replyCh:   make(chan replyMsg, 1),
		dataWrite: dw,
	}
	return s.call(ctx, cc)
}

func (s *Session) Hangup() {}

// toMemDataWriter snapshots whatever the peer's pending write holds so
// it can be replayed to a different endpoint's dispatch loop, which
// runs in another goroutine and cannot share the original handshake
// object safely.
func toMemDataWriter(w vfsglue.DataWriter) (*dataWriter, vfsglue.Errno) {
	if w == nil {
		return nil, vfsglue.EOK
	}
	buf := make([]byte, w.Size())
	if rc := w.Accept(buf); rc != vfsglue.EOK {
		return nil, rc
	}
	return &dataWriter{data: buf}, vfsglue.EOK
}

// dataWriter is the in-memory DataWriter: the bytes are already in
// hand, so Accept is just a copy.
type dataWriter struct {
	data []byte
}

func (d *dataWriter) Size() int { return len(d.data) }

func (d *dataWriter) Accept(buf []byte) vfsglue.Errno {
	copy(buf, d.data)
	return vfsglue.EOK
}

func (d *dataWriter) Reject(rc vfsglue.Errno) {}

// NewDataWriter wraps data as a pending write handshake, e.g. for a
// test driving a connection's MOUNTED/LINK path directly.
func NewDataWriter(data []byte) vfsglue.DataWriter {
	return &dataWriter{data: data}
}

// dataReader is the in-memory DataReader: Deliver stashes the bytes for
// the caller to inspect afterward.
type dataReader struct {
	mu  sync.Mutex
	out []byte
	rc  vfsglue.Errno
}

func (d *dataReader) Deliver(buf []byte) vfsglue.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = append([]byte(nil), buf...)
	return vfsglue.EOK
}

func (d *dataReader) Reject(rc vfsglue.Errno) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rc = rc
}

// Bytes returns whatever Deliver (or Reject) last recorded.
func (d *dataReader) Bytes() ([]byte, vfsglue.Errno) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out, d.rc
}

// NewDataRead returns a pending read handshake and the handle a test
// uses to retrieve what got delivered to it.
func NewDataRead() (vfsglue.DataReader, *dataReader) {
	d := &dataReader{}
	return d, d
}

// Driver calls directly into an Endpoint as the VFS front-end itself
// would, for tests that need to attach a data-write or data-read
// handshake to a request (MOUNTED, LINK, STAT) without the extra
// indirection of a peer Session.
type Driver struct {
	target *Endpoint
}

// NewDriver returns a Driver addressed at target.
func NewDriver(target *Endpoint) *Driver {
	return &Driver{target: target}
}

// Call sends a plain request with no attached data handshake.
func (d *Driver) Call(ctx context.Context, method vfsglue.Method, args [5]uint64) ([]uint64, vfsglue.Errno, error) {
	cc := &callCtx{
		req:     vfsglue.Request{CallID: nextCallID(), Method: method, Args: args},
		replyCh: make(chan replyMsg, 1),
	}
	return d.send(ctx, cc)
}

// CallWithWrite attaches data as a pending data-write handshake.
func (d *Driver) CallWithWrite(ctx context.Context, method vfsglue.Method, args [5]uint64, data []byte) ([]uint64, vfsglue.Errno, error) {
	cc := &callCtx{
		req:       vfsglue.Request{CallID: nextCallID(), Method: method, Args: args},
		replyCh:   make(chan replyMsg, 1),
		dataWrite: &dataWriter{data: data},
	}
	return d.send(ctx, cc)
}

// CallMount is CallWithWrite plus the cloned session a MOUNT request
// carries alongside its mount-options write.
func (d *Driver) CallMount(ctx context.Context, args [5]uint64, mounteeSession vfsglue.Session, data []byte) ([]uint64, vfsglue.Errno, error) {
	cc := &callCtx{
		req: vfsglue.Request{
			CallID:  nextCallID(),
			Method:  vfsglue.MethodMount,
			Args:    args,
			Session: mounteeSession,
		},
		replyCh:   make(chan replyMsg, 1),
		dataWrite: &dataWriter{data: data},
	}
	return d.send(ctx, cc)
}

// CallWithRead attaches a pending data-read handshake and returns
// whatever the handler delivered to it alongside the normal reply.
func (d *Driver) CallWithRead(ctx context.Context, method vfsglue.Method, args [5]uint64) (reply []uint64, rc vfsglue.Errno, delivered []byte, deliverRC vfsglue.Errno, err error) {
	dr := &dataReader{}
	cc := &callCtx{
		req:      vfsglue.Request{CallID: nextCallID(), Method: method, Args: args},
		replyCh:  make(chan replyMsg, 1),
		dataRead: dr,
	}
	reply, rc, err = d.send(ctx, cc)
	delivered, deliverRC = dr.Bytes()
	return
}

func (d *Driver) send(ctx context.Context, cc *callCtx) ([]uint64, vfsglue.Errno, error) {
	select {
	case d.target.requests <- cc:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	select {
	case r := <-cc.replyCh:
		return r.results, r.rc, nil
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}
