package authcore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bizware/authcore/store"
)

// activityDispatcher decouples recording from the hot path: Emit enqueues and
// returns, a single goroutine delivers to the sink.
type activityDispatcher struct {
	cfg       AuditConfig
	sink      ActivitySink
	ch        chan store.ActivityEntry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newActivityDispatcher(cfg AuditConfig, sink ActivitySink) *activityDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &activityDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan store.ActivityEntry, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *activityDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.sink.Emit(context.Background(), entry)
		case <-d.done:
			// Drain whatever Emit managed to enqueue before Close.
			for {
				select {
				case entry := <-d.ch:
					d.sink.Emit(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues an entry. With DropIfFull set a saturated buffer sheds the
// entry instead of blocking; otherwise Emit waits for room or for ctx.
func (d *activityDispatcher) Emit(ctx context.Context, entry store.ActivityEntry) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- entry:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- entry:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting entries, drains the buffer, and waits for delivery.
func (d *activityDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many entries were shed under DropIfFull.
func (d *activityDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
