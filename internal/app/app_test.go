package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/store/mocks"
)

// createTestApp creates a CampaignApp over a mock store so no database is needed
func createTestApp(t *testing.T, ctrl *gomock.Controller, addr string) *CampaignApp {
	t.Helper()
	return createTestAppWithContext(t, context.Background(), ctrl, addr)
}

func createTestAppWithContext(t *testing.T, ctx context.Context, ctrl *gomock.Controller, addr string) *CampaignApp {
	t.Helper()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()

	app, err := NewCampaignApp(ctx,
		WithConfig(createTestAppConfig()),
		WithAddress(addr),
		WithStore(st),
	)
	require.NoError(t, err)
	return app
}

// createTestAppConfig creates a minimal valid config for testing
func createTestAppConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: "5s",
		},
		Database: &config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   "unused.db",
		},
	}
}

// freeAddr returns a loopback address whose port was free a moment ago
func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func waitForStart(t *testing.T, errChan <-chan error) {
	t.Helper()
	select {
	case err := <-errChan:
		t.Fatalf("Start() returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCampaignApp_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr string
	}{
		{name: "successful start with ephemeral port", addr: ":0"},
		{name: "successful start on localhost", addr: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			app := createTestApp(t, ctrl, tt.addr)

			errChan := make(chan error, 1)
			go func() {
				errChan <- app.Start()
			}()
			waitForStart(t, errChan)

			require.NoError(t, app.Stop(5*time.Second))

			select {
			case startErr := <-errChan:
				require.NoError(t, startErr)
			case <-time.After(5 * time.Second):
				t.Fatal("Start() did not return after Stop()")
			}
		})
	}
}

func TestCampaignApp_StartServesRequests(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	addr := freeAddr(t)
	app := createTestApp(t, ctrl, addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	waitForStart(t, errChan)

	for _, path := range []string{"/health", "/readiness"} {
		resp, err := http.Get("http://" + addr + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestCampaignApp_StopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ctrl := gomock.NewController(t)
	app := createTestAppWithContext(t, ctx, ctrl, "127.0.0.1:0")
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	waitForStart(t, errChan)

	cancel()

	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after the context was cancelled")
	}
}

func TestCampaignApp_Stop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
		start   bool
	}{
		{name: "graceful shutdown with normal timeout", timeout: 5 * time.Second, start: true},
		{name: "graceful shutdown with short timeout", timeout: 1 * time.Second, start: true},
		{name: "stop without starting first", timeout: 5 * time.Second, start: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			app := createTestApp(t, ctrl, "127.0.0.1:0")

			if tt.start {
				errChan := make(chan error, 1)
				go func() {
					errChan <- app.Start()
				}()
				waitForStart(t, errChan)
			}

			require.NoError(t, app.Stop(tt.timeout))
			assert.Error(t, app.ctx.Err(), "application context should be cancelled")
		})
	}
}

func TestCampaignApp_StopIdempotent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, "127.0.0.1:0")

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	waitForStart(t, errChan)

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case <-errChan:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after first Stop()")
	}

	// a second stop must not panic
	_ = app.Stop(5 * time.Second)
}

func TestCampaignApp_StopWithNilCancelFunc(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, "127.0.0.1:0")
	app.cancelFunc = nil

	require.NoError(t, app.Stop(5*time.Second))
}

func TestCampaignApp_GetConfig(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, "127.0.0.1:0")

	cfg := app.GetConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "5s", cfg.Server.RequestTimeout)
}

func TestCampaignApp_GetHTTPServer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":8080")

	server := app.GetHTTPServer()

	require.NotNil(t, server)
	assert.Equal(t, ":8080", server.Addr)
}

func TestCampaignApp_StartError_AddressInUse(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	app := createTestApp(t, ctrl, listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case startErr := <-errChan:
		require.Error(t, startErr)
		assert.Contains(t, startErr.Error(), "HTTP server failed")
	case <-time.After(5 * time.Second):
		_ = app.Stop(1 * time.Second)
		t.Fatal("Expected Start() to fail due to port in use")
	}
}
