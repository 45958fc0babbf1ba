package pipeline

import (
	"runtime"
	"sync"

	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/window"
)

// workItem holds a sequence record ready for encoding.
type workItem struct {
	seq    int
	record *gene.Record
}

// workResult holds one sequence's windows, or the error that stopped it.
type workResult struct {
	seq     int
	record  *gene.Record
	windows []window.Window
	err     error
}

// parallelSlice encodes and windows records using a pool of workers.
// Encoding is pure per sequence, so the only shared state is the channels.
// Results arrive in completion order; use orderedCollect to consume them in
// sequence-number order.
func (e *Exporter) parallelSlice(items <-chan workItem, workers int) <-chan workResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan workResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				enc, err := e.encoder.Encode(item.record)
				r := workResult{seq: item.seq, record: item.record, err: err}
				if err == nil {
					r.windows = e.windower.Slice(enc)
				}
				results <- r
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// orderedCollect calls fn for each result in sequence-number order. It
// buffers out-of-order results in a pending map and emits them as soon as
// the next expected sequence number is available. Blocks until the results
// channel is closed.
func orderedCollect(results <-chan workResult, fn func(workResult) error) error {
	pending := make(map[int]workResult)
	nextSeq := 0

	for r := range results {
		pending[r.seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
