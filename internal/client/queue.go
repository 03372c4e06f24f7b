package client

import (
	"context"
	"sync"
)

// Continuation replays a request with a freshly recovered token.
type Continuation func(ctx context.Context, token string) (*Response, error)

type result struct {
	resp *Response
	err  error
}

// pendingEntry is one request parked behind an in-flight recovery.
type pendingEntry struct {
	ctx  context.Context
	cont Continuation
	done chan result
	once sync.Once
}

// settle delivers the outcome; only the first call has any effect. done is
// buffered so settling never blocks on a caller that stopped waiting.
func (e *pendingEntry) settle(resp *Response, err error) {
	e.once.Do(func() {
		e.done <- result{resp: resp, err: err}
	})
}

// pendingQueue is the FIFO of requests waiting on a recovery. It is not
// safe for concurrent use; the Coordinator guards it.
type pendingQueue struct {
	entries []*pendingEntry
}

func (q *pendingQueue) enqueue(ctx context.Context, cont Continuation) *pendingEntry {
	e := &pendingEntry{
		ctx:  ctx,
		cont: cont,
		done: make(chan result, 1),
	}
	q.entries = append(q.entries, e)
	return e
}

func (q *pendingQueue) len() int {
	return len(q.entries)
}

// drain empties the queue and returns the entries in arrival order.
func (q *pendingQueue) drain() []*pendingEntry {
	entries := q.entries
	q.entries = nil
	return entries
}

// replayAll runs each continuation with token in arrival order, one at a time.
func replayAll(entries []*pendingEntry, token string) {
	for _, e := range entries {
		resp, err := e.cont(e.ctx, token)
		e.settle(resp, err)
	}
}

// rejectAll settles every entry with err in arrival order.
func rejectAll(entries []*pendingEntry, err error) {
	for _, e := range entries {
		e.settle(nil, err)
	}
}
