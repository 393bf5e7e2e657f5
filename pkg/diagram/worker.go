package diagram

import (
	"context"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/logging"
)

// Submit queues cfg for the Run loop. A request still waiting when a newer
// one arrives is dropped.
func (d *Diagram) Submit(cfg filter.Config) {
	d.mu.Lock()
	d.next = &cfg
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Reload swaps in a new corpus and queues a rebuild with the current filter.
func (d *Diagram) Reload(idx *corpus.Index) {
	d.SetCorpus(idx)
	d.Submit(d.Filter())
}

// Run applies submitted filters one at a time until ctx is done.
func (d *Diagram) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}

		d.mu.Lock()
		cfg := d.next
		d.next = nil
		d.mu.Unlock()
		if cfg == nil {
			continue
		}

		if _, err := d.Apply(ctx, *cfg); err != nil {
			logging.Error("queued rebuild failed", "error", err)
		}
	}
}
