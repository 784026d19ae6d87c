package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toitware/broker"
	"github.com/toitware/broker/client"
)

// TestE2E_Storage_SQLite runs the storage commands with a SQLite object index.
func TestE2E_Storage_SQLite(t *testing.T) {
	dsn := getSharedPostgresDatabase(t)

	endpoint, baseURL := startServer(t, ServerConfig{
		Port:          getOpenPort(t),
		DBType:        "sqlite",
		DBDSN:         filepath.Join(t.TempDir(), "index.db"),
		StoragePath:   t.TempDir(),
		PublicBuckets: []string{"assets"},
		ProceduresDSN: dsn,
	})

	runStorageTests(t, endpoint, baseURL)
}

// TestE2E_Storage_Postgres runs the storage commands with a PostgreSQL object index.
func TestE2E_Storage_Postgres(t *testing.T) {
	dsn := getSharedPostgresDatabase(t)

	endpoint, baseURL := startServer(t, ServerConfig{
		Port:          getOpenPort(t),
		DBType:        "postgres",
		DBDSN:         dsn,
		DBTable:       "e2e_objects",
		StoragePath:   t.TempDir(),
		PublicBuckets: []string{"assets"},
		ProceduresDSN: dsn,
	})

	runStorageTests(t, endpoint, baseURL)
}

func runStorageTests(t *testing.T, endpoint, baseURL string) {
	t.Helper()
	ctx := context.Background()

	c, err := client.New(&client.Config{Endpoint: endpoint})
	require.NoError(t, err)

	content := []byte("0123456789")
	localPath := filepath.Join(t.TempDir(), "pod.bin")
	require.NoError(t, os.WriteFile(localPath, content, 0o600))

	t.Run("upload", func(t *testing.T) {
		results, err := c.Upload(ctx, client.UploadOptions{LocalPath: localPath, RemotePath: "assets/pods/pod.bin"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(len(content)), results[0].Size)

		_, err = c.Upload(ctx, client.UploadOptions{LocalPath: localPath, RemotePath: "private/dev-1/fw.bin"})
		require.NoError(t, err)
	})

	t.Run("download", func(t *testing.T) {
		result, reader, err := c.Download(ctx, client.DownloadOptions{RemotePath: "private/dev-1/fw.bin", LocalPath: "-"})
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		assert.Equal(t, http.StatusOK, result.StatusCode)
		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("public download with offset", func(t *testing.T) {
		result, reader, err := c.Download(ctx, client.DownloadOptions{
			RemotePath: "assets/pods/pod.bin",
			LocalPath:  "-",
			Offset:     4,
			Public:     true,
		})
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		assert.True(t, result.Partial())
		assert.Equal(t, int64(10), result.TotalSize)
		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, content[4:], got)
	})

	t.Run("private download with offset fails", func(t *testing.T) {
		_, _, err := c.Download(ctx, client.DownloadOptions{
			RemotePath: "private/dev-1/fw.bin",
			LocalPath:  "-",
			Offset:     4,
		})
		var serverErr *client.ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, http.StatusTeapot, serverErr.StatusCode)
	})

	t.Run("missing object", func(t *testing.T) {
		_, _, err := c.Download(ctx, client.DownloadOptions{RemotePath: "private/none.bin", LocalPath: "-"})
		var serverErr *client.ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, http.StatusTeapot, serverErr.StatusCode)
	})

	t.Run("public url", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/storage/v1/object/public/assets/pods/pod.bin")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("ETag"))

		resp2, err := http.Get(baseURL + "/storage/v1/object/public/private/dev-1/fw.bin")
		require.NoError(t, err)
		defer func() { _ = resp2.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	})
}

// TestE2E_Procedures runs device commands through the PostgreSQL procedures.
func TestE2E_Procedures(t *testing.T) {
	dsn := getSharedPostgresDatabase(t)

	endpoint, _ := startServer(t, ServerConfig{
		Port:          getOpenPort(t),
		DBType:        "sqlite",
		DBDSN:         filepath.Join(t.TempDir(), "index.db"),
		StoragePath:   t.TempDir(),
		ProceduresDSN: dsn,
	})

	ctx := context.Background()
	c, err := client.New(&client.Config{Endpoint: endpoint})
	require.NoError(t, err)

	deviceID := uuid.NewString()
	params := func(v any) json.RawMessage {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}

	t.Run("goal round trip", func(t *testing.T) {
		result, err := c.Call(ctx, broker.CommandGetGoal, params(map[string]any{"_device_id": deviceID}))
		require.NoError(t, err)
		assert.JSONEq(t, "null", string(result.Data))

		result, err = c.Call(ctx, broker.CommandUpdateGoal, params(map[string]any{
			"_device_id": deviceID,
			"_goal":      map[string]any{"max-offline": "1h"},
		}))
		require.NoError(t, err)
		assert.JSONEq(t, "null", string(result.Data))

		result, err = c.Call(ctx, broker.CommandGetGoal, params(map[string]any{"_device_id": deviceID}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"max-offline":"1h"}`, string(result.Data))
	})

	t.Run("events", func(t *testing.T) {
		for _, typ := range []string{"boot", "ping"} {
			_, err := c.Call(ctx, broker.CommandReportEvent, params(map[string]any{
				"_device_id": deviceID,
				"_type":      typ,
				"_data":      map[string]any{"n": 1},
			}))
			require.NoError(t, err)
		}

		result, err := c.Call(ctx, broker.CommandGetEvents, params(map[string]any{
			"_device_ids": []string{deviceID},
			"_types":      []string{"ping"},
			"_limit":      10,
		}))
		require.NoError(t, err)

		var events []map[string]any
		require.NoError(t, json.Unmarshal(result.Data, &events))
		require.Len(t, events, 1)
		assert.Equal(t, "ping", events[0]["type"])
	})

	t.Run("backend error is forwarded", func(t *testing.T) {
		_, err := c.Call(ctx, broker.CommandGetGoal, params(map[string]any{"_device_id": "not-a-uuid"}))
		var serverErr *client.ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, http.StatusTeapot, serverErr.StatusCode)
		assert.Contains(t, serverErr.Message, "uuid")
	})

	t.Run("procedure missing from schema", func(t *testing.T) {
		_, err := c.Call(ctx, broker.CommandGetDevices, params(map[string]any{"_fleet_id": uuid.NewString()}))
		var serverErr *client.ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Contains(t, serverErr.Message, "Could not find the function")
	})

	t.Run("unknown command", func(t *testing.T) {
		body := broker.Envelope{Command: 200, Payload: []byte("{}")}.Encode()
		resp, err := http.Post(endpoint, "application/octet-stream", bytes.NewReader(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
		var msg string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
		assert.NotEmpty(t, msg)
	})
}

// TestE2E_Metrics checks the metrics listener counts handled commands.
func TestE2E_Metrics(t *testing.T) {
	metricsPort := getOpenPort(t)

	endpoint, _ := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "index.db"),
		StoragePath: t.TempDir(),
		MetricsPort: metricsPort,
	})

	// Procedures are not configured, so the call fails with a backend error.
	c, err := client.New(&client.Config{Endpoint: endpoint})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), broker.CommandGetGoal, nil)
	require.Error(t, err)

	base := "http://localhost:" + strconv.Itoa(metricsPort)
	waitForServer(t, base, 5*time.Second)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `broker_commands_total{command="get-goal"`)

	health, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer func() { _ = health.Body.Close() }()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
