package e2e_test

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "broker-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = os.RemoveAll(sharedTempDir)
	if testCleanup != nil {
		testCleanup()
	}

	os.Exit(code)
}

// ServerConfig holds configuration for starting the broker server.
type ServerConfig struct {
	Port          int
	Path          string
	DBType        string // sqlite, postgres
	DBDSN         string
	DBTable       string
	StoragePath   string
	PublicBuckets []string
	ProceduresDSN string
	MetricsPort   int // 0 disables metrics
}

// buildBinary compiles the broker binary once per test run.
func buildBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "broker")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/broker")
		cmd.Dir = getProjectRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			binaryBuildErr = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binary: %v", binaryBuildErr)
	}

	return binaryPath
}

// getProjectRoot returns the directory holding go.mod.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes a config file for the local backend.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	var sb strings.Builder
	fmt.Fprintf(&sb, `server:
  port: %d
  path: %s
backend:
  type: local
local:
  storage_path: "%s"
  public_url: "http://localhost:%d"
  database:
    type: %s
    dsn: "%s"
    table: %s
  auto_migrate: true
  procedures_dsn: "%s"
`,
		cfg.Port,
		cfg.Path,
		cfg.StoragePath,
		cfg.Port,
		cfg.DBType,
		cfg.DBDSN,
		cfg.DBTable,
		cfg.ProceduresDSN,
	)

	if len(cfg.PublicBuckets) > 0 {
		sb.WriteString("  public_buckets:\n")
		for _, b := range cfg.PublicBuckets {
			fmt.Fprintf(&sb, "    - %s\n", b)
		}
	}

	if cfg.MetricsPort != 0 {
		fmt.Fprintf(&sb, "metrics:\n  enabled: true\n  addr: \":%d\"\n", cfg.MetricsPort)
	}

	sb.WriteString("log:\n  level: error\n")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sb.String()), 0o600), "write config file")
	return configPath
}

// startServer starts the broker binary and returns the command endpoint URL
// and the server's base URL. The server is stopped when the test ends.
func startServer(t *testing.T, cfg ServerConfig) (endpoint, baseURL string) {
	t.Helper()

	if cfg.Path == "" {
		cfg.Path = "/functions/v1/b"
	}
	if cfg.DBTable == "" {
		cfg.DBTable = "broker_objects"
	}

	binary := buildBinary(t)
	configPath := createConfigFile(t, cfg)

	cmd := exec.Command(binary, "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start(), "start server")

	t.Cleanup(func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	})

	baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(t, baseURL, 10*time.Second)

	return baseURL + cfg.Path, baseURL
}

// waitForServer polls the server until it responds or times out.
func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close(), "close port")

	return port
}
