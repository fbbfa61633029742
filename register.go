package vfsglue

import "context"

// RegisterCall is the in-progress registration exchange begun by
// Registrar.Begin.
type RegisterCall interface {
	// WriteInfo streams the backend's vfs_info descriptor to the VFS
	// front-end.
	WriteInfo(ctx context.Context, info VFSInfo) error

	// RequestCallback asks the VFS front-end for a callback connection
	// terminating in handler, and declares handler the default for any
	// further connections the front-end spawns afterward.
	RequestCallback(ctx context.Context, handler ConnectionHandler) error

	// MapPLB requests a read-only shared mapping of the Path Lookup
	// Buffer. A failure to map must be reported as ENoMemory by the
	// caller.
	MapPLB(ctx context.Context, size int) (*PLB, error)

	// Await blocks for the asynchronous registration answer, yielding
	// the assigned FSHandle.
	Await(ctx context.Context) (FSHandle, error)

	// Forget drops the outstanding registration request without waiting
	// for an answer, so a failure partway through registration doesn't
	// leave the exchange dangling.
	Forget()
}

// Registrar begins the registration handshake with the VFS front-end:
// opening an exchange and sending an asynchronous registration request.
type Registrar interface {
	Begin(ctx context.Context) (RegisterCall, error)
}

// Register joins backend to the VFS front-end via reg, and returns a
// Connection ready to Serve inbound connections once the front-end calls
// back.
func Register(ctx context.Context, reg Registrar, info VFSInfo, backend Backend, bulk BulkOps, cfg Config) (*Connection, error) {
	call, err := reg.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if err := call.WriteInfo(ctx, info); err != nil {
		call.Forget()
		return nil, err
	}

	conn := &Connection{
		cfg:  cfg,
		bulk: bulk,
	}

	if err := call.RequestCallback(ctx, conn.Serve); err != nil {
		call.Forget()
		return nil, err
	}

	plb, err := call.MapPLB(ctx, cfg.PLBSize)
	if err != nil {
		call.Forget()
		return nil, ENoMemory
	}

	handle, err := call.Await(ctx)
	if err != nil {
		return nil, err
	}

	conn.fsHandle = handle
	conn.engine = &Engine{
		Backend:  backend,
		PLB:      plb,
		FSHandle: handle,
		Logger:   cfg.Logger,
	}

	return conn, nil
}
