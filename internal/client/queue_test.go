package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingQueue_DrainKeepsOrder(t *testing.T) {
	var q pendingQueue
	ctx := context.Background()

	a := q.enqueue(ctx, nil)
	b := q.enqueue(ctx, nil)
	c := q.enqueue(ctx, nil)
	require.Equal(t, 3, q.len())

	entries := q.drain()
	assert.Equal(t, []*pendingEntry{a, b, c}, entries)
	assert.Equal(t, 0, q.len())
	assert.Empty(t, q.drain())
}

func TestPendingEntry_SettlesOnce(t *testing.T) {
	var q pendingQueue
	e := q.enqueue(context.Background(), nil)

	e.settle(&Response{Status: 200}, nil)
	e.settle(nil, ErrSessionExpired)

	res := <-e.done
	assert.NoError(t, res.err)
	assert.Equal(t, 200, res.resp.Status)

	select {
	case <-e.done:
		t.Fatal("entry settled twice")
	default:
	}
}

func TestReplayAll(t *testing.T) {
	var q pendingQueue
	var seen []string

	for _, name := range []string{"first", "second"} {
		q.enqueue(context.Background(), func(ctx context.Context, token string) (*Response, error) {
			seen = append(seen, name+":"+token)
			return &Response{Status: 200}, nil
		})
	}

	entries := q.drain()
	replayAll(entries, "T2")

	assert.Equal(t, []string{"first:T2", "second:T2"}, seen)
	for _, e := range entries {
		res := <-e.done
		assert.NoError(t, res.err)
	}
}

func TestRejectAll(t *testing.T) {
	var q pendingQueue
	called := false
	q.enqueue(context.Background(), func(ctx context.Context, token string) (*Response, error) {
		called = true
		return nil, nil
	})

	entries := q.drain()
	rejectAll(entries, ErrSessionExpired)

	res := <-entries[0].done
	assert.ErrorIs(t, res.err, ErrSessionExpired)
	assert.False(t, called)
}
