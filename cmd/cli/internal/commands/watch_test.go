package commands

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/session"
)

func stateOf(user *models.User, msg string) session.State {
	return session.State{User: user, Error: msg}
}

// syncBuffer guards output written by the watch goroutine.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestWatchCmd_StopsOnCancel(t *testing.T) {
	srv := newBackend(t)
	globals, _ := testGlobals(t, srv)
	out := &syncBuffer{}
	globals.Out = out

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- (&WatchCmd{}).Run(ctx, globals)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "signed out")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.Contains(t, out.String(), "stopped at /dashboard")
}
