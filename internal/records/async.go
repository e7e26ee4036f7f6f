package records

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

// AsyncWriter owns a Writer and feeds it from a single goroutine, so any
// number of producers may Submit to it concurrently.
// Call Close() when you're done!
type AsyncWriter struct {
	writer  Writer
	batches chan []Record
	errors  chan error
	written atomic.Int64

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

// NewAsyncWriter starts the writer goroutine.
// queue: how many batches may wait for the writer before Submit blocks.
func NewAsyncWriter(w Writer, queue int) *AsyncWriter {
	if queue < 0 {
		queue = 0
	}
	a := &AsyncWriter{
		writer:  w,
		batches: make(chan []Record, queue),
		errors:  make(chan error, 1),
	}
	go a.run()
	return a
}

func (a *AsyncWriter) run() {
	var err error
	for batch := range a.batches {
		// After a failure keep draining so producers never block.
		if err != nil {
			continue
		}
		for _, rec := range batch {
			if err = a.writer.Write(rec); err != nil {
				a.fail(err)
				break
			}
			a.written.Add(1)
		}
	}
	a.errors <- multierr.Append(err, a.writer.Close())
	close(a.errors)
}

func (a *AsyncWriter) fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

// Err returns the first write error seen by the writer goroutine, if any.
func (a *AsyncWriter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Submit hands batch to the writer goroutine. The caller must not touch
// batch afterwards. Submit must not be called after Close.
func (a *AsyncWriter) Submit(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	if err := a.Err(); err != nil {
		return err
	}
	select {
	case a.batches <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Written is the number of records that reached the underlying writer.
func (a *AsyncWriter) Written() int64 {
	return a.written.Load()
}

// Close waits for queued batches to be written and closes the underlying
// writer. It is safe to call more than once.
func (a *AsyncWriter) Close() error {
	a.closeOnce.Do(func() {
		close(a.batches)
		a.closeErr = <-a.errors
	})
	return a.closeErr
}
