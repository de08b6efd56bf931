package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Address: ":0"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(http.NotFoundHandler())
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.NotNil(t, cfg.Handler)
}

func TestServer_RunAndShutdown(t *testing.T) {
	cfg := DefaultConfig(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	cfg.Address = "127.0.0.1:0"
	cfg.ShutdownTimeout = 5 * time.Second

	srv, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	var hooks []int
	srv.RegisterHook(func(ctx context.Context) error {
		hooks = append(hooks, 1)
		return nil
	})
	srv.RegisterHook(func(ctx context.Context) error {
		hooks = append(hooks, 2)
		return assert.AnError
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, []int{1, 2}, hooks)
}

func TestServer_ListenError(t *testing.T) {
	first, err := New(&Config{Address: "127.0.0.1:0", Handler: http.NotFoundHandler()})
	require.NoError(t, err)
	require.NoError(t, first.Listen())

	second, err := New(&Config{Address: first.Addr(), Handler: http.NotFoundHandler()})
	require.NoError(t, err)
	closed := false
	second.RegisterHook(func(context.Context) error {
		closed = true
		return nil
	})
	assert.Error(t, second.Run(context.Background()))
	assert.True(t, closed, "hooks run when listening fails")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, first.Run(ctx))
}
