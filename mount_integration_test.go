package vfsglue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helenos-go/vfsglue"
	"github.com/helenos-go/vfsglue/internal/memtransport"
	"github.com/helenos-go/vfsglue/samples/memfat"
)

// instance is one served memfat connection: a backend, its dispatch
// loop, and the endpoint/driver pair a test or a peer connection calls
// it through.
type instance struct {
	serviceID vfsglue.ServiceID
	fsHandle  vfsglue.FSHandle
	driver    *memtransport.Driver
	ep        *memtransport.Endpoint
	plbBuf    []byte
	cancel    context.CancelFunc
	done      chan struct{}
}

// newInstance serves a fresh memfat instance over buf, the PLB segment
// shared by every instance in the test, so a LOOKUP forwarded across a
// mount point reads the same path bytes its (first, length) address.
func newInstance(t *testing.T, buf []byte, serviceID vfsglue.ServiceID, fsHandle vfsglue.FSHandle) *instance {
	t.Helper()

	plb := vfsglue.NewPLB(buf)
	fs := memfat.New(serviceID, nil)
	bulk := memfat.NewBulk(fs)
	conn := vfsglue.NewConnection(fs, bulk, plb, fsHandle, vfsglue.Config{})

	ep := memtransport.NewEndpoint(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = conn.Serve(ctx, ep, 0)
		close(done)
	}()

	inst := &instance{
		serviceID: serviceID,
		fsHandle:  fsHandle,
		driver:    memtransport.NewDriver(ep),
		ep:        ep,
		plbBuf:    buf,
		cancel:    cancel,
		done:      done,
	}
	t.Cleanup(inst.teardown)
	return inst
}

func (in *instance) teardown() {
	in.ep.Close()
	in.cancel()
	select {
	case <-in.done:
	case <-time.After(time.Second):
	}
}

func (in *instance) path(p string) (first, length uint32) {
	n := copy(in.plbBuf, p)
	return 0, uint32(n)
}

// TestMountCrossesIntoMountee exercises the two-connection MOUNT/LOOKUP
// path: a directory in the root instance becomes an active mount point
// forwarding onto a second, independently served instance, and a LOOKUP
// that walks through the mount point is transparently rerouted to it.
func TestMountCrossesIntoMountee(t *testing.T) {
	ctx := context.Background()

	plbBuf := make([]byte, 4096)
	root := newInstance(t, plbBuf, vfsglue.ServiceID(1), vfsglue.FSHandle(1))
	mountee := newInstance(t, plbBuf, vfsglue.ServiceID(2), vfsglue.FSHandle(2))

	first, length := root.path("/mnt")
	reply, rc, err := root.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), uint64(root.serviceID), uint64(vfsglue.NoIndex),
		uint64(vfsglue.LDirectory | vfsglue.LCreate),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	mountPointIndex := vfsglue.NodeIndex(reply[2])

	mounteeSession := memtransport.NewSession(mountee.ep)
	_, rc, err = root.driver.CallMount(ctx, [5]uint64{
		uint64(root.serviceID), uint64(mountPointIndex),
		uint64(mountee.fsHandle), uint64(mountee.serviceID),
	}, mounteeSession, []byte("ro"))
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)

	// A file created directly in the mountee, reached by walking through
	// the root instance's mount point, must resolve to the mountee's
	// own node rather than ENOENT in the root instance.
	mfirst, mlength := mountee.path("/inside.txt")
	mreply, rc, err := mountee.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(mfirst), uint64(mlength), uint64(mountee.serviceID), uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile | vfsglue.LCreate),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	insideIndex := mreply[2]

	first, length = root.path("/mnt/inside.txt")
	reply, rc, err = root.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), uint64(root.serviceID), uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc, "lookup crossing the mount point reaches the mountee instead of failing locally")
	require.Equal(t, uint64(mountee.serviceID), reply[1], "forwarded reply carries the mountee's own service id")
	require.Equal(t, insideIndex, reply[2])

	// UNMOUNT tears the link back down; a subsequent lookup under the
	// (now bare) mount point directory must fail locally again.
	_, rc, err = root.driver.Call(ctx, vfsglue.MethodUnmount, [5]uint64{
		uint64(root.serviceID), uint64(mountPointIndex),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)

	first, length = root.path("/mnt/inside.txt")
	_, rc, err = root.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), uint64(root.serviceID), uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.ENoEntry, rc, "after unmount the mount point is an ordinary empty directory again")
}

// TestMountRejectsDoubleMount confirms an already-active mount point
// answers a second MOUNT with EBusy rather than silently replacing the
// existing mount.
func TestMountRejectsDoubleMount(t *testing.T) {
	ctx := context.Background()

	plbBuf := make([]byte, 4096)
	root := newInstance(t, plbBuf, vfsglue.ServiceID(1), vfsglue.FSHandle(1))
	mounteeA := newInstance(t, plbBuf, vfsglue.ServiceID(2), vfsglue.FSHandle(2))
	mounteeB := newInstance(t, plbBuf, vfsglue.ServiceID(3), vfsglue.FSHandle(3))

	first, length := root.path("/mnt")
	reply, rc, err := root.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), uint64(root.serviceID), uint64(vfsglue.NoIndex),
		uint64(vfsglue.LDirectory | vfsglue.LCreate),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	mountPointIndex := vfsglue.NodeIndex(reply[2])

	_, rc, err = root.driver.CallMount(ctx, [5]uint64{
		uint64(root.serviceID), uint64(mountPointIndex),
		uint64(mounteeA.fsHandle), uint64(mounteeA.serviceID),
	}, memtransport.NewSession(mounteeA.ep), nil)
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)

	_, rc, err = root.driver.CallMount(ctx, [5]uint64{
		uint64(root.serviceID), uint64(mountPointIndex),
		uint64(mounteeB.fsHandle), uint64(mounteeB.serviceID),
	}, memtransport.NewSession(mounteeB.ep), nil)
	require.NoError(t, err)
	require.Equal(t, vfsglue.EBusy, rc)
}
