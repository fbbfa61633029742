package vfsglue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helenos-go/vfsglue"
	"github.com/helenos-go/vfsglue/internal/memtransport"
	"github.com/helenos-go/vfsglue/samples/memfat"
)

// harness wires a single memfat instance behind a Connection, served
// over an in-memory endpoint a test can drive directly. plbBuf is the
// raw backing array behind plb, which the test writes path bytes into
// exactly as a real VFS front-end would write into the shared PLB
// segment before issuing LOOKUP.
type harness struct {
	driver *memtransport.Driver
	plbBuf []byte
	ep     *memtransport.Endpoint
	cancel context.CancelFunc
	done   chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	buf := make([]byte, 4096)
	plb := vfsglue.NewPLB(buf)
	fs := memfat.New(vfsglue.ServiceID(1), nil)
	bulk := memfat.NewBulk(fs)
	conn := vfsglue.NewConnection(fs, bulk, plb, vfsglue.FSHandle(7), vfsglue.Config{})

	ep := memtransport.NewEndpoint(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = conn.Serve(ctx, ep, 0)
		close(done)
	}()

	h := &harness{
		driver: memtransport.NewDriver(ep),
		plbBuf: buf,
		ep:     ep,
		cancel: cancel,
		done:   done,
	}
	t.Cleanup(h.teardown)
	return h
}

func (h *harness) teardown() {
	h.ep.Close()
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
	}
}

// path stages a canonical path into the PLB and returns its (first,
// length) address, the way LOOKUP's caller must.
func (h *harness) path(p string) (first, length uint32) {
	n := copy(h.plbBuf, p)
	return 0, uint32(n)
}

func TestLookupCreateThenFind(t *testing.T) {
	h := newHarness(t)
	first, length := h.path("/hello.txt")
	ctx := context.Background()

	reply, rc, err := h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile | vfsglue.LCreate | vfsglue.LExclusive),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	require.Len(t, reply, 6)

	createdIndex := reply[2]

	// Looking it up again without L_CREATE must find the same node.
	reply2, rc, err := h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	assert.Equal(t, createdIndex, reply2[2])

	// Re-creating exclusively must fail.
	_, rc, err = h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile | vfsglue.LCreate | vfsglue.LExclusive),
	})
	require.NoError(t, err)
	assert.Equal(t, vfsglue.EAlreadyExist, rc)
}

func TestLookupUnlinkReportsOldLinkCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, length := h.path("/a.txt")

	_, rc, err := h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile | vfsglue.LCreate),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)

	reply, rc, err := h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LUnlink),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	assert.Equal(t, uint64(1), reply[5], "reported link count is what it was before the unlink")

	_, rc, err = h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile),
	})
	require.NoError(t, err)
	assert.Equal(t, vfsglue.ENoEntry, rc, "the entry is gone from its parent after unlink")
}

func TestLookupRejectsUnlinkCreateCombination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, length := h.path("/x")

	_, rc, err := h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LUnlink | vfsglue.LCreate),
	})
	require.NoError(t, err)
	assert.Equal(t, vfsglue.EInvalidArg, rc)
}

func TestStatDeliversPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, length := h.path("/s.txt")

	reply, rc, err := h.driver.Call(ctx, vfsglue.MethodLookup, [5]uint64{
		uint64(first), uint64(length), 1, uint64(vfsglue.NoIndex),
		uint64(vfsglue.LFile | vfsglue.LCreate),
	})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	index := reply[2]

	_, rc, delivered, deliverRC, err := h.driver.CallWithRead(ctx, vfsglue.MethodStat, [5]uint64{1, index})
	require.NoError(t, err)
	require.Equal(t, vfsglue.EOK, rc)
	require.Equal(t, vfsglue.EOK, deliverRC)
	require.NotEmpty(t, delivered)
}
