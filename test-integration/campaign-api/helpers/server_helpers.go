// Package helpers provides utilities for the campaign API integration tests.
package helpers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	campaignapp "github.com/civicstack/campaign-server/internal/app"
	"github.com/civicstack/campaign-server/internal/config"
)

// ServerTestHelper manages the campaign API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *campaignapp.CampaignApp
}

// WriteSQLiteConfig writes a configuration storing data in dir and returns its path
func WriteSQLiteConfig(dir string, extra string) string {
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("server:\n  requestTimeout: 10s\ndatabase:\n  driver: sqlite\n  path: %s\n%s",
		filepath.Join(dir, "campaign.db"), extra)
	gomega.Expect(os.WriteFile(path, []byte(body), 0o600)).To(gomega.Succeed())
	return path
}

// NewServerTestHelper creates a server helper listening on a free loopback port
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	address := listener.Addr().String()
	gomega.Expect(listener.Close()).To(gomega.Succeed())

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// StartServer builds the application and serves it in the background
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := campaignapp.NewCampaignApp(s.ctx,
		campaignapp.WithConfig(cfg),
		campaignapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()
	return nil
}

// StopServer gracefully stops the campaign API server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits until /readiness answers 200
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// BaseURL returns the server root URL
func (s *ServerTestHelper) BaseURL() string {
	return s.baseURL
}
