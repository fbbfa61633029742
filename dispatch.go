package vfsglue

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Config carries optional configuration accepted by Register.
type Config struct {
	// PLBSize is the fixed size of the Path Lookup Buffer to request at
	// registration.
	PLBSize int

	// Logger receives debug- and error-level dispatch tracing. Nil
	// disables logging entirely.
	Logger *logrus.Logger
}

// VFSInfo is the descriptor a backend streams to the VFS front-end during
// registration. Its exact fields are front-end-specific and out of this
// package's scope; it is carried opaquely.
type VFSInfo struct {
	Name         string
	ConcurrentOp bool
}

// ConnectionHandler serves one transport connection to completion. It has
// the same signature as (*Connection).Serve, which is what Register
// installs as the VFS front-end's callback handler.
type ConnectionHandler func(ctx context.Context, ep Endpoint, establishmentCallID uint64) error

// Connection drives a single logical dispatch loop shared by every
// connection the transport hands it. One Connection is created per
// registered filesystem instance type; Serve may be invoked repeatedly,
// once per inbound connection the transport spawns.
type Connection struct {
	cfg      Config
	engine   *Engine
	bulk     BulkOps
	fsHandle FSHandle
}

// NewConnection wires a dispatch loop around backend and bulk, to be
// driven by Serve once FSHandle is known (normally via Register).
func NewConnection(backend Backend, bulk BulkOps, plb *PLB, fsHandle FSHandle, cfg Config) *Connection {
	return &Connection{
		cfg:      cfg,
		bulk:     bulk,
		fsHandle: fsHandle,
		engine: &Engine{
			Backend:  backend,
			PLB:      plb,
			FSHandle: fsHandle,
			Logger:   cfg.Logger,
		},
	}
}

// FSHandle returns the handle assigned to this connection's filesystem
// type at registration.
func (c *Connection) FSHandle() FSHandle {
	return c.fsHandle
}

// Serve drains ep until the peer terminates the connection (method zero)
// or an error occurs. If establishmentCallID is non-zero, Serve first
// answers it affirmatively, acknowledging the call that established this
// connection before entering the read loop.
func (c *Connection) Serve(ctx context.Context, ep Endpoint, establishmentCallID uint64) error {
	if establishmentCallID != 0 {
		if err := ep.Reply(ctx, establishmentCallID, EOK, nil); err != nil {
			return err
		}
	}

	for {
		req, err := ep.Receive(ctx)
		if err != nil {
			return err
		}
		if req.Method == MethodTerminate {
			return nil
		}
		if err := c.dispatch(ctx, ep, req); err != nil {
			return err
		}
	}
}

func (c *Connection) dispatch(ctx context.Context, ep Endpoint, req Request) error {
	debugLog(c.cfg.Logger, logrus.Fields{"call_id": req.CallID}, "<- %s", req.Method)

	switch req.Method {
	case MethodMounted:
		return c.handleMounted(ctx, ep, req)
	case MethodMount:
		w, _ := ep.PendingDataWrite(ctx)
		return c.engine.Mount(ctx, ep, req, req.Session, w)
	case MethodUnmounted:
		rc := c.bulk.Unmounted(ServiceID(req.Args[0]))
		return c.reply0(ctx, ep, req, rc)
	case MethodUnmount:
		return c.engine.Unmount(ctx, ep, req)
	case MethodLink:
		w, _ := ep.PendingDataWrite(ctx)
		return c.engine.Link(ctx, ep, req, w)
	case MethodLookup:
		return c.engine.Lookup(ctx, ep, req)
	case MethodRead:
		return c.handleRead(ctx, ep, req)
	case MethodWrite:
		return c.handleWrite(ctx, ep, req)
	case MethodTruncate:
		size := mergeLoUp32(uint32(req.Args[2]), uint32(req.Args[3]))
		rc := c.bulk.Truncate(ServiceID(req.Args[0]), NodeIndex(req.Args[1]), size)
		return c.reply0(ctx, ep, req, rc)
	case MethodClose:
		rc := c.bulk.Close(ServiceID(req.Args[0]), NodeIndex(req.Args[1]))
		return c.reply0(ctx, ep, req, rc)
	case MethodDestroy:
		rc := c.bulk.Destroy(ServiceID(req.Args[0]), NodeIndex(req.Args[1]))
		return c.reply0(ctx, ep, req, rc)
	case MethodOpenNode:
		return c.engine.OpenNode(ctx, ep, req)
	case MethodStat:
		r, _ := ep.PendingDataRead(ctx)
		return c.engine.Stat(ctx, ep, req, r, c.fsHandle)
	case MethodSync:
		rc := c.bulk.Sync(ServiceID(req.Args[0]), NodeIndex(req.Args[1]))
		return c.reply0(ctx, ep, req, rc)
	default:
		return c.reply0(ctx, ep, req, ENotSupported)
	}
}

func (c *Connection) reply0(ctx context.Context, ep Endpoint, req Request, rc Errno) error {
	errorLog(c.cfg.Logger, logrus.Fields{"call_id": req.CallID}, req.Method, rc)
	return ep.Reply(ctx, req.CallID, rc, nil)
}

func (c *Connection) handleMounted(ctx context.Context, ep Endpoint, req Request) error {
	serviceID := ServiceID(req.Args[0])
	w, err := ep.PendingDataWrite(ctx)
	if err != nil || w == nil {
		return c.reply0(ctx, ep, req, EInvalidArg)
	}

	opts := make([]byte, w.Size())
	if rc := w.Accept(opts); rc != EOK {
		return c.reply0(ctx, ep, req, rc)
	}

	index, size, linkCount, rc := c.bulk.Mounted(serviceID, opts)
	if rc != EOK {
		return c.reply0(ctx, ep, req, rc)
	}
	lo, hi := loUp32(size)
	errorLog(c.cfg.Logger, logrus.Fields{"call_id": req.CallID}, req.Method, rc)
	return ep.Reply(ctx, req.CallID, EOK, []uint64{uint64(index), uint64(lo), uint64(hi), uint64(linkCount)})
}

func (c *Connection) handleRead(ctx context.Context, ep Endpoint, req Request) error {
	serviceID := ServiceID(req.Args[0])
	index := NodeIndex(req.Args[1])
	pos := mergeLoUp32(uint32(req.Args[2]), uint32(req.Args[3]))

	rbytes, rc := c.bulk.Read(serviceID, index, pos)
	if rc != EOK {
		return c.reply0(ctx, ep, req, rc)
	}
	errorLog(c.cfg.Logger, logrus.Fields{"call_id": req.CallID}, req.Method, rc)
	return ep.Reply(ctx, req.CallID, EOK, []uint64{uint64(rbytes)})
}

func (c *Connection) handleWrite(ctx context.Context, ep Endpoint, req Request) error {
	serviceID := ServiceID(req.Args[0])
	index := NodeIndex(req.Args[1])
	pos := mergeLoUp32(uint32(req.Args[2]), uint32(req.Args[3]))

	wbytes, newSize, rc := c.bulk.Write(serviceID, index, pos)
	if rc != EOK {
		return c.reply0(ctx, ep, req, rc)
	}
	lo, hi := loUp32(newSize)
	errorLog(c.cfg.Logger, logrus.Fields{"call_id": req.CallID}, req.Method, rc)
	return ep.Reply(ctx, req.CallID, EOK, []uint64{uint64(wbytes), uint64(lo), uint64(hi)})
}
