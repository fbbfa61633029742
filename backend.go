package vfsglue

// Backend is the contract a concrete filesystem implementation supplies
// to the lookup engine. rc == EOK signifies success; every non-EOK
// result must be propagated to the caller by the engine.
//
// RootGet and NodeGet may return (EOK, nil) to mean "no such object";
// that is distinct from a non-EOK error and the engine treats it as such
// throughout.
type Backend interface {
	// RootGet returns the root node of the named instance.
	RootGet(serviceID ServiceID) (Node, Errno)

	// NodeGet returns the node with the given index, or (nil, EOK) if it
	// does not exist.
	NodeGet(serviceID ServiceID, index NodeIndex) (Node, Errno)

	// NodePut releases one reference to n, previously acquired via
	// RootGet or NodeGet.
	NodePut(n Node) Errno

	// NodeOpen marks n as opened.
	NodeOpen(n Node) Errno

	// Match looks up name within directory parent, returning (nil, EOK)
	// if no such entry exists.
	Match(parent Node, name string) (Node, Errno)

	// Create allocates a new orphan node of the kind named by kind
	// (KindFile or KindDirectory), not yet linked into any directory.
	// Returns (nil, EOK) if the backend has no room for a new node
	// (mapped by the lookup engine to ENoSpace).
	Create(serviceID ServiceID, kind Kind) (Node, Errno)

	// Destroy removes a node created by Create but never linked — the
	// rollback path for a failed create-then-link sequence.
	Destroy(n Node) Errno

	// Link adds child under parent with the given name.
	Link(parent, child Node, name string) Errno

	// Unlink reverses Link. It does not destroy the node.
	Unlink(parent, child Node, name string) Errno
}
