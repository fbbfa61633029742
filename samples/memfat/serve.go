package memfat

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/helenos-go/vfsglue"
)

// ServeAll drives one Connection's dispatch loop concurrently over
// every endpoint in eps, one goroutine per connection. It returns once
// every endpoint's Serve call has returned, or the first non-nil error.
func ServeAll(ctx context.Context, conn *vfsglue.Connection, eps []vfsglue.Endpoint) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ep := range eps {
		ep := ep
		g.Go(func() error {
			return conn.Serve(ctx, ep, 0)
		})
	}
	return g.Wait()
}
