package vfsglue

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mount attaches another filesystem instance onto one of this instance's
// nodes, turning it into an active mount point. mounteeSession is the
// session cloned from the one received alongside the MOUNT request; w is
// the pending mount-options data-write to be forwarded to the mountee as
// MOUNTED.
func (e *Engine) Mount(ctx context.Context, ep Endpoint, req Request, mounteeSession Session, w DataWriter) error {
	callID := req.CallID
	mpServiceID := ServiceID(req.Args[0])
	mpIndex := NodeIndex(req.Args[1])
	mrFSHandle := FSHandle(req.Args[2])
	mrServiceID := ServiceID(req.Args[3])

	debugLog(e.Logger, logrus.Fields{"call_id": callID}, "MOUNT mp_service=%d mp_index=%d mr_fs=%d mr_service=%d", mpServiceID, mpIndex, mrFSHandle, mrServiceID)

	if mounteeSession == nil {
		return e.reply(ctx, ep, callID, EInvalidArg, nil)
	}

	fn, rc := e.Backend.NodeGet(mpServiceID, mpIndex)
	if rc != EOK || fn == nil {
		mounteeSession.Hangup()
		combined := CombineRC(rc, ENoEntry)
		rejectWrite(w, combined)
		return e.reply(ctx, ep, callID, combined, nil)
	}

	if fn.MountData().Active {
		mounteeSession.Hangup()
		_ = e.Backend.NodePut(fn)
		rejectWrite(w, EBusy)
		return e.reply(ctx, ep, callID, EBusy, nil)
	}

	sess, err := mounteeSession.Clone(ctx)
	if err != nil {
		mounteeSession.Hangup()
		_ = e.Backend.NodePut(fn)
		rejectWrite(w, EIO)
		return e.reply(ctx, ep, callID, EIO, nil)
	}

	reply, rc, err := sess.ForwardDataWrite(ctx, MethodMounted, uint64(mrServiceID), w)
	if err != nil && rc == EOK {
		rc = EIO
	}

	if rc == EOK {
		mp := fn.MountData()
		mp.Active = true
		mp.MountedFSHandle = mrFSHandle
		mp.MountedServiceID = mrServiceID
		mp.Session = mounteeSession
		// Intentionally not releasing fn: the mount holds a second
		// reference for as long as it is active, released by Unmount.
	} else {
		_ = e.Backend.NodePut(fn)
	}

	results := make([]uint64, 4)
	copy(results, reply)
	return e.reply(ctx, ep, callID, rc, results)
}

// Unmount detaches a mounted instance from the node it is active on,
// notifying the mountee before releasing the mount's hold on the node.
func (e *Engine) Unmount(ctx context.Context, ep Endpoint, req Request) error {
	callID := req.CallID
	mpServiceID := ServiceID(req.Args[0])
	mpIndex := NodeIndex(req.Args[1])

	debugLog(e.Logger, logrus.Fields{"call_id": callID}, "UNMOUNT mp_service=%d mp_index=%d", mpServiceID, mpIndex)

	fn, rc := e.Backend.NodeGet(mpServiceID, mpIndex)
	if rc != EOK || fn == nil {
		return e.reply(ctx, ep, callID, CombineRC(rc, ENoEntry), nil)
	}

	mp := fn.MountData()
	if !mp.Active {
		_ = e.Backend.NodePut(fn)
		return e.reply(ctx, ep, callID, EInvalidArg, nil)
	}

	sess := mp.Session
	_, rc, err := sess.Call(ctx, MethodUnmounted, [5]uint64{uint64(mp.MountedServiceID)})
	if err != nil && rc == EOK {
		rc = EIO
	}

	if rc == EOK {
		sess.Hangup()
		mp.clear()
		// Release the mount-time hold.
		_ = e.Backend.NodePut(fn)
	}

	// Release this handler's own acquisition.
	_ = e.Backend.NodePut(fn)
	return e.reply(ctx, ep, callID, rc, nil)
}

func rejectWrite(w DataWriter, rc Errno) {
	if w != nil {
		w.Reject(rc)
	}
}
