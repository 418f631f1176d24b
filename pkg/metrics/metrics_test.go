package metrics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownBeforeServeIsNoop(t *testing.T) {
	m := New("test")
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestServeStopsOnShutdown(t *testing.T) {
	m := New("test")

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Serve(0, "/metrics")
	}()

	// 等待监听建立
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.server != nil
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
