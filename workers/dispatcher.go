// Package workers runs batch message decryption on a fixed goroutine pool.
package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"listing-chat/crypto"
)

// ErrStopped is returned by DecryptAll once the dispatcher has been stopped.
var ErrStopped = errors.New("decryption dispatcher stopped")

// Record is one ciphertext to decrypt. Index identifies it to the caller.
type Record struct {
	Index      int
	Ciphertext []byte
	Nonce      []byte
}

// Result carries a plaintext or a decryption error back with the Index of
// the Record it came from.
type Result struct {
	Index     int
	Plaintext string
	Err       error
}

// DecryptFunc opens one ciphertext. crypto.Decrypt in production.
type DecryptFunc func(ciphertext, nonce []byte, key crypto.Key) (string, error)

type job struct {
	ctx    context.Context
	record Record
	key    crypto.Key
	out    chan<- Result
	done   func()
}

// Dispatcher fans decrypt jobs out to a pool of workers. Results come back
// in completion order; callers reassemble them by Index.
type Dispatcher struct {
	workers int
	decrypt DecryptFunc
	jobs    chan job
	quit    chan struct{}
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(workers, queueSize int, decrypt DecryptFunc) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if decrypt == nil {
		decrypt = crypto.Decrypt
	}
	return &Dispatcher{
		workers: workers,
		decrypt: decrypt,
		jobs:    make(chan job, queueSize),
		quit:    make(chan struct{}),
	}
}

// Start launches the worker goroutines. Calling it again is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Stop signals the workers to exit and waits for them.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
	})
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case j := <-d.jobs:
			// out is buffered for the whole batch, so these sends never block.
			if err := j.ctx.Err(); err != nil {
				j.out <- Result{Index: j.record.Index, Err: err}
			} else {
				plain, err := d.decrypt(j.record.Ciphertext, j.record.Nonce, j.key)
				j.out <- Result{Index: j.record.Index, Plaintext: plain, Err: err}
			}
			if j.done != nil {
				j.done()
			}
		}
	}
}

// DecryptAll decrypts every record with key and waits for all of them.
// Each Result carries its Record's Index; order of the returned slice is
// completion order. If ctx ends first, DecryptAll returns ctx.Err() without
// waiting and the workers discard the abandoned jobs.
//
// Workers use a private copy of key that is wiped once the last submitted
// job of the batch has finished, so the caller may destroy key as soon as
// DecryptAll returns.
func (d *Dispatcher) DecryptAll(ctx context.Context, records []Record, key crypto.Key) ([]Result, error) {
	if len(records) == 0 {
		return []Result{}, nil
	}
	out := make(chan Result, len(records))

	batchKey := key.Clone()
	var pending atomic.Int64
	pending.Store(1)
	release := func() {
		if pending.Add(-1) == 0 {
			batchKey.Destroy()
		}
	}
	defer release()

	for _, r := range records {
		pending.Add(1)
		select {
		case d.jobs <- job{ctx: ctx, record: r, key: batchKey, out: out, done: release}:
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		case <-d.quit:
			release()
			return nil, ErrStopped
		}
	}

	results := make([]Result, 0, len(records))
	for len(results) < len(records) {
		select {
		case r := <-out:
			results = append(results, r)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.quit:
			return nil, ErrStopped
		}
	}
	return results, nil
}
