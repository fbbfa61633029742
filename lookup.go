package vfsglue

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Engine is the generic lookup and mount engine: it walks a canonicalized
// path through the PLB, honors mount-point forwarding, and mediates node
// lifetime against a Backend.
type Engine struct {
	Backend  Backend
	PLB      *PLB
	FSHandle FSHandle
	Logger   *logrus.Logger
}

// release puts back whatever of par, cur, tmp is still non-nil. Called on
// every exit from Lookup as a deferred scoped-release, so every acquired
// node reference is put back exactly once regardless of which branch
// returns.
func (e *Engine) release(par, cur, tmp *Node) {
	if *par != nil {
		_ = e.Backend.NodePut(*par)
		*par = nil
	}
	if *cur != nil {
		_ = e.Backend.NodePut(*cur)
		*cur = nil
	}
	if *tmp != nil {
		_ = e.Backend.NodePut(*tmp)
		*tmp = nil
	}
}

func (e *Engine) reply(ctx context.Context, ep Endpoint, callID uint64, rc Errno, results []uint64) error {
	errorLog(e.Logger, logrus.Fields{"call_id": callID}, MethodLookup, rc)
	return ep.Reply(ctx, callID, rc, results)
}

// Lookup resolves a path carried in the PLB against Backend, crossing
// mount points transparently, and optionally creates, unlinks, or opens
// the resolved node according to flags.
func (e *Engine) Lookup(ctx context.Context, ep Endpoint, req Request) error {
	callID := req.CallID
	first := uint32(req.Args[0])
	length := uint32(req.Args[1])
	serviceID := ServiceID(req.Args[2])
	index := NodeIndex(req.Args[3])
	flags := LookupFlags(req.Args[4])

	debugLog(e.Logger, logrus.Fields{"call_id": callID}, "LOOKUP first=%d length=%d service=%d index=%d flags=%#x", first, length, serviceID, index, flags)

	// L_UNLINK and L_CREATE together is ambiguous (which should win?);
	// reject it outright rather than let one flag silently win.
	if flags.has(LUnlink) && flags.has(LCreate) {
		return e.reply(ctx, ep, callID, EInvalidArg, nil)
	}

	var par, cur, tmp Node
	defer e.release(&par, &cur, &tmp)

	var rc Errno
	if index == NoIndex {
		cur, rc = e.Backend.RootGet(serviceID)
	} else {
		cur, rc = e.Backend.NodeGet(serviceID, index)
	}
	if rc != EOK {
		return e.reply(ctx, ep, callID, rc, nil)
	}

	// Whole-path forwarding: the starting node is itself an active mount
	// point.
	if cur != nil && cur.MountData().Active {
		mp := *cur.MountData()
		err := ep.Forward(ctx, mp.Session, first, length, mp.MountedServiceID, NoIndex, flags)
		return err
	}

	next := first
	last := first + length
	var component []byte

	for next != last {
		if cur == nil {
			return e.reply(ctx, ep, callID, ENoEntry, nil)
		}
		if !cur.IsDirectory() {
			return e.reply(ctx, ep, callID, ENotDirectory, nil)
		}

		comp, crc := e.PLB.GetComponent(&next, last)
		if crc != EOK {
			return e.reply(ctx, ep, callID, crc, nil)
		}
		if len(comp) == 0 {
			// The path was just "/"; the root (still in cur) stands.
			break
		}
		component = comp

		tmp, rc = e.Backend.Match(cur, string(comp))
		if rc != EOK {
			return e.reply(ctx, ep, callID, rc, nil)
		}

		// Mid-walk mount crossing: forward unless L_MP says to stop at
		// the last component.
		if tmp != nil && tmp.MountData().Active && (!flags.has(LMP) || next < last) {
			mp := *tmp.MountData()
			err := ep.Forward(ctx, mp.Session, next, last-next, mp.MountedServiceID, NoIndex, flags)
			return err
		}

		if par != nil {
			prc := e.Backend.NodePut(par)
			par = nil
			if prc != EOK {
				return e.reply(ctx, ep, callID, prc, nil)
			}
		}
		par = cur
		cur = tmp
		tmp = nil
	}

	// Post-walk checks: par is nil (path was "/") or a directory; cur
	// may be nil (target doesn't exist yet).
	if cur != nil && flags.has(LFile) && cur.IsDirectory() {
		return e.reply(ctx, ep, callID, EIsDirectory, nil)
	}
	if cur != nil && flags.has(LDirectory) && cur.IsFile() {
		return e.reply(ctx, ep, callID, ENotDirectory, nil)
	}

	// Unlink.
	if flags.has(LUnlink) {
		if cur == nil {
			return e.reply(ctx, ep, callID, ENoEntry, nil)
		}
		if par == nil {
			return e.reply(ctx, ep, callID, EInvalidArg, nil)
		}

		oldLinkCount := cur.LinkCount()
		rc = e.Backend.Unlink(par, cur, string(component))
		if rc != EOK {
			return e.reply(ctx, ep, callID, rc, nil)
		}
		lo, hi := loUp32(cur.Size())
		return e.reply(ctx, ep, callID, EOK, []uint64{
			uint64(e.FSHandle), uint64(serviceID), uint64(cur.NodeIndex()),
			uint64(lo), uint64(hi), uint64(oldLinkCount),
		})
	}

	// Create.
	if flags.has(LCreate) {
		if cur != nil && flags.has(LExclusive) {
			return e.reply(ctx, ep, callID, EAlreadyExist, nil)
		}
		if cur == nil {
			var crc Errno
			cur, crc = e.Backend.Create(serviceID, Kind(flags&(LFile|LDirectory)))
			if crc != EOK {
				return e.reply(ctx, ep, callID, crc, nil)
			}
			if cur == nil {
				return e.reply(ctx, ep, callID, ENoSpace, nil)
			}

			lrc := e.Backend.Link(par, cur, string(component))
			if lrc != EOK {
				_ = e.Backend.Destroy(cur)
				cur = nil
				return e.reply(ctx, ep, callID, lrc, nil)
			}
		}
	}

	// Return the resolved node's address, opening it first if asked.
	if cur == nil {
		return e.reply(ctx, ep, callID, ENoEntry, nil)
	}

	if flags.has(LOpen) {
		if orc := e.Backend.NodeOpen(cur); orc != EOK {
			return e.reply(ctx, ep, callID, orc, nil)
		}
	}

	lo, hi := loUp32(cur.Size())
	return e.reply(ctx, ep, callID, EOK, []uint64{
		uint64(e.FSHandle), uint64(serviceID), uint64(cur.NodeIndex()),
		uint64(lo), uint64(hi), uint64(cur.LinkCount()),
	})
}

// Link adds a child under a parent directory with a name received via a
// data-write handshake.
func (e *Engine) Link(ctx context.Context, ep Endpoint, req Request, w DataWriter) error {
	callID := req.CallID
	parentSID := ServiceID(req.Args[0])
	parentIdx := NodeIndex(req.Args[1])
	childIdx := NodeIndex(req.Args[2])

	name, rc := receiveName(w)
	if rc != EOK {
		return e.reply(ctx, ep, callID, rc, nil)
	}

	parent, rc := e.Backend.NodeGet(parentSID, parentIdx)
	if parent == nil {
		if rc == EOK {
			rc = EBadFd
		}
		return e.reply(ctx, ep, callID, rc, nil)
	}
	defer e.Backend.NodePut(parent)

	child, rc := e.Backend.NodeGet(parentSID, childIdx)
	if child == nil {
		if rc == EOK {
			rc = EBadFd
		}
		return e.reply(ctx, ep, callID, rc, nil)
	}
	defer e.Backend.NodePut(child)

	rc = e.Backend.Link(parent, child, name)
	return e.reply(ctx, ep, callID, rc, nil)
}

// receiveName accepts a name over a data-write handshake. The name must
// not exceed NameMax+1 bytes (one more than the boundary GetComponent
// itself preserves), and a write that is too large is rejected, not
// truncated.
func receiveName(w DataWriter) (string, Errno) {
	if w == nil {
		return "", ENoEntry
	}
	size := w.Size()
	if size > NameMax+1 {
		w.Reject(ERange)
		return "", ERange
	}
	buf := make([]byte, size)
	if rc := w.Accept(buf); rc != EOK {
		return "", rc
	}
	return string(buf), EOK
}

// Stat reports a node's current attributes, delivering them over a
// data-read handshake when one is attached to the request.
func (e *Engine) Stat(ctx context.Context, ep Endpoint, req Request, r DataReader, fsHandle FSHandle) error {
	callID := req.CallID
	serviceID := ServiceID(req.Args[0])
	index := NodeIndex(req.Args[1])

	fn, rc := e.Backend.NodeGet(serviceID, index)
	if rc != EOK {
		return e.reply(ctx, ep, callID, rc, nil)
	}
	if fn == nil {
		return e.reply(ctx, ep, callID, ENoEntry, nil)
	}
	defer e.Backend.NodePut(fn)

	st := Stat{
		FSHandle:    fsHandle,
		ServiceID:   serviceID,
		Index:       index,
		LinkCount:   fn.LinkCount(),
		IsFile:      fn.IsFile(),
		IsDirectory: fn.IsDirectory(),
		Size:        fn.Size(),
	}

	if r != nil {
		if rc := r.Deliver(st.Marshal()); rc != EOK {
			return e.reply(ctx, ep, callID, rc, nil)
		}
	}
	return e.reply(ctx, ep, callID, EOK, nil)
}

// Stat is the payload delivered by the STAT handler's data-read handshake.
type Stat struct {
	FSHandle    FSHandle
	ServiceID   ServiceID
	Index       NodeIndex
	LinkCount   uint32
	IsFile      bool
	IsDirectory bool
	Size        uint64
}

// Marshal renders the stat struct as a flat little-endian byte buffer for
// delivery over the data-read handshake.
func (s Stat) Marshal() []byte {
	buf := make([]byte, 8+8+8+4+1+1+8)
	putU32 := func(off int, v uint32) {
		buf[off], buf[off+1], buf[off+2], buf[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}
	putU64 := func(off int, v uint64) {
		for i := 0; i < 8; i++ {
			buf[off+i] = byte(v >> (8 * i))
		}
	}
	putU32(0, uint32(s.FSHandle))
	putU64(8, uint64(s.ServiceID))
	putU64(16, uint64(s.Index))
	putU32(24, s.LinkCount)
	if s.IsFile {
		buf[28] = 1
	}
	if s.IsDirectory {
		buf[29] = 1
	}
	putU64(30, s.Size)
	return buf
}

// OpenNode marks a node open and reports its size, link count, and kind.
func (e *Engine) OpenNode(ctx context.Context, ep Endpoint, req Request) error {
	callID := req.CallID
	serviceID := ServiceID(req.Args[0])
	index := NodeIndex(req.Args[1])

	fn, rc := e.Backend.NodeGet(serviceID, index)
	if rc != EOK {
		return e.reply(ctx, ep, callID, rc, nil)
	}
	if fn == nil {
		return e.reply(ctx, ep, callID, ENoEntry, nil)
	}
	defer e.Backend.NodePut(fn)

	rc = e.Backend.NodeOpen(fn)
	lo, hi := loUp32(fn.Size())
	var kind uint64
	if fn.IsFile() {
		kind |= uint64(LFile)
	}
	if fn.IsDirectory() {
		kind |= uint64(LDirectory)
	}
	return e.reply(ctx, ep, callID, rc, []uint64{uint64(lo), uint64(hi), uint64(fn.LinkCount()), kind})
}
