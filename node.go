package vfsglue

import "fmt"

// ServiceID identifies the filesystem instance owning a node.
type ServiceID uint64

// NodeIndex is a stable per-instance object identifier.
type NodeIndex uint64

// FSHandle identifies a registered filesystem type, assigned by the VFS
// front-end at registration time.
type FSHandle uint32

// NoIndex is the sentinel lookup-index value meaning "start from root".
const NoIndex NodeIndex = ^NodeIndex(0)

// Kind bits describing what sort of object Backend.Create should allocate,
// reused from the lookup flag bits that carry the same meaning.
type Kind uint32

const (
	KindFile      Kind = LFile
	KindDirectory Kind = LDirectory
)

// MountPoint is the mutable mount-point state embedded in every Node. Its
// zero value is an inactive (non-mount-point) node.
//
// Invariant: Active ⇒ Session != nil && MountedFSHandle != 0 &&
// MountedServiceID != 0. Deactivation clears all four fields atomically
// (the lookup and unmount code paths below never set a subset of them).
type MountPoint struct {
	Active           bool
	MountedFSHandle  FSHandle
	MountedServiceID ServiceID
	Session          Session
}

// clear resets all four mount-point fields together, preserving the
// invariant above across every path that deactivates a mount point.
func (mp *MountPoint) clear() {
	*mp = MountPoint{}
}

// Node is the runtime-level handle an FS backend exposes for an on-disk
// object. Backends provide concrete Node implementations; the lookup
// engine only ever reads derived queries off a Node and mutates its
// embedded MountPoint across mount/unmount.
//
// Every Node value returned by Backend.RootGet or Backend.NodeGet with
// EOK must be released with exactly one Backend.NodePut call on every
// control-flow exit.
type Node interface {
	// ServiceIdentifier returns the identifier of the filesystem instance
	// owning this node.
	ServiceIdentifier() ServiceID

	// NodeIndex returns this node's stable per-instance object identifier.
	NodeIndex() NodeIndex

	// IsFile reports whether the node is a regular file.
	IsFile() bool

	// IsDirectory reports whether the node is a directory.
	IsDirectory() bool

	// Size returns the node's size in bytes.
	Size() uint64

	// LinkCount returns the node's current link count.
	LinkCount() uint32

	// MountData returns a pointer to this node's mount-point state. The
	// lookup and mount/unmount code in this package is the only code that
	// mutates it; backends only ever read it.
	MountData() *MountPoint
}

// nodeString renders a Node for debug logging as "service:index".
func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d:%d", n.ServiceIdentifier(), n.NodeIndex())
}
