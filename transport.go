package vfsglue

import "context"

// Request is one inbound message on the dispatch loop's endpoint: a method
// and up to five integer argument slots.
type Request struct {
	CallID uint64 // zero on the first call of a freshly accepted connection
	Method Method
	Args   [5]uint64

	// Session carries the cloned session accompanying a MOUNT request.
	// Populated by the transport only for MethodMount.
	Session Session
}

// DataWriter is the receiving side of an async-data-write handshake: the
// peer has already announced it wants to stream size bytes, and Accept (or
// Reject) decides whether we take them, as a single typed two-phase
// transfer.
type DataWriter interface {
	// Size reports how many bytes the peer wants to send.
	Size() int

	// Accept finalizes the transfer into buf, which must be at least
	// Size() bytes. Returns EOK on success.
	Accept(buf []byte) Errno

	// Reject drains the pending write with the given error, so the peer
	// does not block waiting for a decision it will never get.
	Reject(rc Errno)
}

// DataReader is the sending side of an async-data-read handshake: the peer
// is waiting to receive up to len(buf) bytes.
type DataReader interface {
	// Deliver finalizes the transfer, sending buf to the peer.
	Deliver(buf []byte) Errno

	// Reject declines the pending read with the given error.
	Reject(rc Errno)
}

// Session is a cloneable, forwardable handle to a peer connection, used to
// reach a mounted filesystem instance.
type Session interface {
	// Clone establishes a new parallel session on top of this one, as the
	// MOUNT handler does before forwarding MOUNTED to the mountee.
	Clone(ctx context.Context) (Session, error)

	// Call performs a blocking request/reply exchange over the session,
	// used by UNMOUNT to send UNMOUNTED to the mounted instance.
	Call(ctx context.Context, method Method, args [5]uint64) (reply []uint64, rc Errno, err error)

	// ForwardDataWrite forwards a pending data-write handshake to this
	// session as the given method with one argument, returning the
	// mountee's reply (MOUNT forwards the mount-options write via
	// MOUNTED this way).
	ForwardDataWrite(ctx context.Context, method Method, arg0 uint64, w DataWriter) (reply []uint64, rc Errno, err error)

	// Hangup closes the session.
	Hangup()
}

// Forwarder is implemented by an Endpoint's in-flight call: it lets the
// lookup engine hand the reply channel for the *current* request off to
// another session with "route-from-me" semantics, for mid-walk mount
// crossing, without the forwarding party needing to see the eventual
// reply.
type Forwarder interface {
	// Forward routes the remainder of the current request to sess as a
	// LOOKUP with the given (first, length, serviceID, index, flags),
	// transferring only the reply channel — node references must still be
	// released by the caller.
	Forward(ctx context.Context, sess Session, first, length uint32, serviceID ServiceID, index NodeIndex, flags LookupFlags) error
}

// Endpoint is the inbound half of the transport: where the dispatch loop
// reads requests and sends replies.
type Endpoint interface {
	// Receive blocks for the next inbound request. It returns
	// MethodTerminate when the peer has severed the connection.
	Receive(ctx context.Context) (Request, error)

	// PendingDataWrite returns the data-write handshake the peer has
	// initiated for the current request, or nil if none is pending.
	PendingDataWrite(ctx context.Context) (DataWriter, error)

	// PendingDataRead returns the data-read handshake the peer is waiting
	// on for the current request, or nil if none is pending.
	PendingDataRead(ctx context.Context) (DataReader, error)

	// Reply answers the request identified by callID with an error code
	// and the reply's result words. Every handler must produce exactly
	// one reply.
	Reply(ctx context.Context, callID uint64, rc Errno, results []uint64) error

	// Forwarder exposes the route-from-me forwarding primitive for the
	// request currently being handled.
	Forwarder
}
