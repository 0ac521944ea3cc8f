package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestNewServerDerivesWriteTimeout(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{RequestTimeout: 10 * time.Second}}
	srv := NewServer(cfg, ":0", http.NotFoundHandler())
	assert.Equal(t, 15*time.Second, srv.WriteTimeout)

	srv = NewServer(&config.Config{}, ":0", http.NotFoundHandler())
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := NewServer(&config.Config{}, "127.0.0.1:0", http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, srv, logger.New(logger.Options{ServiceName: "api-test", Output: io.Discard}))
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
