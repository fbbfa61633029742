// Package memfat is a complete, in-memory vfsglue.Backend and
// vfsglue.BulkOps implementation whose directory semantics are governed
// by the FAT 8.3 name rules in package fat, used to exercise component
// A (dispatch), B (lookup/mount), C (the FAT codec) and D (registry)
// together end to end (analogous to the teacher's samples/memfs).
package memfat

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/helenos-go/vfsglue"
	"github.com/helenos-go/vfsglue/fat"
)

// node is one in-memory object. A node is a directory if children is
// non-nil.
type node struct {
	mu sync.Mutex

	serviceID vfsglue.ServiceID
	index     vfsglue.NodeIndex
	dir       bool
	opened    bool
	linkCount uint32
	mountData vfsglue.MountPoint

	children map[string]vfsglue.NodeIndex // dir only
	content  []byte                       // file only
}

func (n *node) ServiceIdentifier() vfsglue.ServiceID { return n.serviceID }
func (n *node) NodeIndex() vfsglue.NodeIndex         { return n.index }
func (n *node) IsFile() bool                         { return !n.dir }
func (n *node) IsDirectory() bool                    { return n.dir }

func (n *node) Size() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.content))
}

func (n *node) LinkCount() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.linkCount
}

func (n *node) MountData() *vfsglue.MountPoint { return &n.mountData }

// FS is one filesystem instance's backing store: a tree of nodes under
// a single ServiceID, addressable by NodeIndex.
type FS struct {
	mu     sync.Mutex
	nodes  map[vfsglue.NodeIndex]*node
	nextID vfsglue.NodeIndex
	root   vfsglue.NodeIndex

	serviceID vfsglue.ServiceID
	logger    *logrus.Logger
}

// New creates an empty instance rooted at an empty directory, owned by
// serviceID.
func New(serviceID vfsglue.ServiceID, logger *logrus.Logger) *FS {
	f := &FS{
		nodes:     make(map[vfsglue.NodeIndex]*node),
		serviceID: serviceID,
		logger:    logger,
	}
	root := f.alloc(true)
	root.linkCount = 1
	f.root = root.index
	return f
}

func (f *FS) alloc(dir bool) *node {
	f.nextID++
	n := &node{serviceID: f.serviceID, index: f.nextID, dir: dir}
	if dir {
		n.children = make(map[string]vfsglue.NodeIndex)
	}
	f.nodes[f.nextID] = n
	return n
}

func (f *FS) debugf(format string, args ...interface{}) {
	if f.logger != nil {
		f.logger.WithField("service_id", f.serviceID).Debugf(format, args...)
	}
}

////////////////////////////////////////////////////////////////////////
// vfsglue.Backend
////////////////////////////////////////////////////////////////////////

func (f *FS) RootGet(serviceID vfsglue.ServiceID) (vfsglue.Node, vfsglue.Errno) {
	return f.NodeGet(serviceID, f.root)
}

func (f *FS) NodeGet(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex) (vfsglue.Node, vfsglue.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[index]
	if !ok {
		return nil, vfsglue.EOK
	}
	return n, vfsglue.EOK
}

func (f *FS) NodePut(n vfsglue.Node) vfsglue.Errno {
	return vfsglue.EOK
}

func (f *FS) NodeOpen(n vfsglue.Node) vfsglue.Errno {
	nn := n.(*node)
	nn.mu.Lock()
	nn.opened = true
	nn.mu.Unlock()
	return vfsglue.EOK
}

// Match looks up name in parent using fat.Namecmp, the same
// case-insensitive, trailing-dot-tolerant comparison the original FAT
// driver uses to match an 8.3 directory entry against a path component.
func (f *FS) Match(parent vfsglue.Node, name string) (vfsglue.Node, vfsglue.Errno) {
	p := parent.(*node)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dir {
		return nil, vfsglue.ENotDirectory
	}

	if idx, ok := p.children[name]; ok {
		return f.nodeLocked(idx)
	}
	for stored, idx := range p.children {
		if fat.Namecmp(stored, name) {
			return f.nodeLocked(idx)
		}
	}
	return nil, vfsglue.EOK
}

func (f *FS) nodeLocked(index vfsglue.NodeIndex) (vfsglue.Node, vfsglue.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[index]
	if !ok {
		return nil, vfsglue.EOK
	}
	return n, vfsglue.EOK
}

func (f *FS) Create(serviceID vfsglue.ServiceID, kind vfsglue.Kind) (vfsglue.Node, vfsglue.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.alloc(kind == vfsglue.KindDirectory)
	return n, vfsglue.EOK
}

func (f *FS) Destroy(n vfsglue.Node) vfsglue.Errno {
	nn := n.(*node)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, nn.index)
	return vfsglue.EOK
}

// Link adds child under parent as name, rejecting any name that does
// not pass the FAT 8.3 legality check (fat.NameVerify) the way a real
// FAT directory write would.
func (f *FS) Link(parent, child vfsglue.Node, name string) vfsglue.Errno {
	if !fat.NameVerify(name) {
		return vfsglue.ENameTooLong
	}

	p := parent.(*node)
	c := child.(*node)

	p.mu.Lock()
	if !p.dir {
		p.mu.Unlock()
		return vfsglue.ENotDirectory
	}
	if _, exists := p.children[name]; exists {
		p.mu.Unlock()
		return vfsglue.EAlreadyExist
	}
	p.children[name] = c.index
	p.mu.Unlock()

	c.mu.Lock()
	c.linkCount++
	c.mu.Unlock()

	f.debugf("link %s -> %d", name, c.index)
	return vfsglue.EOK
}

func (f *FS) Unlink(parent, child vfsglue.Node, name string) vfsglue.Errno {
	p := parent.(*node)
	c := child.(*node)

	p.mu.Lock()
	if _, exists := p.children[name]; !exists {
		p.mu.Unlock()
		return vfsglue.ENoEntry
	}
	delete(p.children, name)
	p.mu.Unlock()

	c.mu.Lock()
	if c.linkCount > 0 {
		c.linkCount--
	}
	c.mu.Unlock()

	f.debugf("unlink %s", name)
	return vfsglue.EOK
}

////////////////////////////////////////////////////////////////////////
// vfsglue.BulkOps
////////////////////////////////////////////////////////////////////////

// Bulk adapts an FS to vfsglue.BulkOps. It is a separate type from FS,
// rather than another set of methods on FS itself, because BulkOps and
// Backend both name a "Destroy" method with different signatures (the
// VFS-triggered whole-node destroy vs. Backend's create-rollback) and
// Go does not allow a single type to declare a method name twice.
type Bulk struct {
	fs *FS
}

// NewBulk adapts fs to vfsglue.BulkOps.
func NewBulk(fs *FS) *Bulk { return &Bulk{fs: fs} }

// Mounted answers the MOUNTED bulk op: opts is ignored (this backend
// has no mount-time options of its own) and the existing root is
// reported as the mount's vantage point.
func (b *Bulk) Mounted(serviceID vfsglue.ServiceID, opts []byte) (vfsglue.NodeIndex, uint64, uint32, vfsglue.Errno) {
	root, rc := b.fs.RootGet(serviceID)
	if rc != vfsglue.EOK || root == nil {
		return 0, 0, 0, vfsglue.ENoEntry
	}
	n := root.(*node)
	return n.index, n.Size(), n.LinkCount(), vfsglue.EOK
}

func (b *Bulk) Unmounted(serviceID vfsglue.ServiceID) vfsglue.Errno {
	return vfsglue.EOK
}

func (b *Bulk) Read(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex, pos uint64) (int, vfsglue.Errno) {
	f := b.fs
	f.mu.Lock()
	n, ok := f.nodes[index]
	f.mu.Unlock()
	if !ok {
		return 0, vfsglue.ENoEntry
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dir {
		return 0, vfsglue.EIsDirectory
	}
	if pos >= uint64(len(n.content)) {
		return 0, vfsglue.EOK
	}
	return len(n.content) - int(pos), vfsglue.EOK
}

func (b *Bulk) Write(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex, pos uint64) (int, uint64, vfsglue.Errno) {
	f := b.fs
	f.mu.Lock()
	n, ok := f.nodes[index]
	f.mu.Unlock()
	if !ok {
		return 0, 0, vfsglue.ENoEntry
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dir {
		return 0, 0, vfsglue.EIsDirectory
	}
	if pos > uint64(len(n.content)) {
		grown := make([]byte, pos)
		copy(grown, n.content)
		n.content = grown
	}
	return 0, uint64(len(n.content)), vfsglue.EOK
}

func (b *Bulk) Truncate(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex, size uint64) vfsglue.Errno {
	f := b.fs
	f.mu.Lock()
	n, ok := f.nodes[index]
	f.mu.Unlock()
	if !ok {
		return vfsglue.ENoEntry
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case uint64(len(n.content)) == size:
	case size < uint64(len(n.content)):
		n.content = n.content[:size]
	default:
		grown := make([]byte, size)
		copy(grown, n.content)
		n.content = grown
	}
	return vfsglue.EOK
}

func (b *Bulk) Close(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex) vfsglue.Errno {
	f := b.fs
	f.mu.Lock()
	n, ok := f.nodes[index]
	f.mu.Unlock()
	if !ok {
		return vfsglue.ENoEntry
	}
	n.mu.Lock()
	n.opened = false
	n.mu.Unlock()
	return vfsglue.EOK
}

func (b *Bulk) Destroy(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex) vfsglue.Errno {
	f := b.fs
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[index]; !ok {
		return vfsglue.ENoEntry
	}
	delete(f.nodes, index)
	return vfsglue.EOK
}

func (b *Bulk) Sync(serviceID vfsglue.ServiceID, index vfsglue.NodeIndex) vfsglue.Errno {
	return vfsglue.EOK
}
