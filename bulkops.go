package vfsglue

// BulkOps is the bulk data-plane contract: operations the dispatch loop
// invokes directly, without going through the lookup engine. Every
// method identifies its target by (serviceID, index) rather than by an
// acquired Node.
type BulkOps interface {
	// Mounted is invoked when another filesystem instance mounts onto
	// one of ours; opts is the data written by the mounting side's MOUNT
	// handler. It returns the mounted root's stats.
	Mounted(serviceID ServiceID, opts []byte) (index NodeIndex, size uint64, linkCount uint32, rc Errno)

	// Unmounted is invoked to tell this instance it is being unmounted.
	Unmounted(serviceID ServiceID) Errno

	// Read reports the number of bytes read from the node at pos; rbytes
	// is what the READ handler reports back to the VFS front-end. No
	// data-read handshake carries the bytes themselves: the READ handler
	// does not pass a DataReader here or deliver any payload.
	Read(serviceID ServiceID, index NodeIndex, pos uint64) (rbytes int, rc Errno)

	// Write handles a write to the node at pos, returning the number of
	// bytes written and the node's new size. The WRITE handler performs
	// no data-write handshake, so no payload bytes reach this method.
	Write(serviceID ServiceID, index NodeIndex, pos uint64) (wbytes int, newSize uint64, rc Errno)

	// Truncate changes the node's size.
	Truncate(serviceID ServiceID, index NodeIndex, size uint64) Errno

	// Close closes the node.
	Close(serviceID ServiceID, index NodeIndex) Errno

	// Destroy removes the node entirely (the VFS-triggered DESTROY
	// method — distinct from Backend.Destroy, which only rolls back an
	// unlinked orphan created moments earlier by Backend.Create).
	Destroy(serviceID ServiceID, index NodeIndex) Errno

	// Sync flushes the node to stable storage.
	Sync(serviceID ServiceID, index NodeIndex) Errno
}
