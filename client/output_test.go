package client_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toitware/broker"
	"github.com/toitware/broker/client"
)

func TestNewFormatter(t *testing.T) {
	_, ok := client.NewFormatter(true, false).(*client.JSONFormatter)
	assert.True(t, ok)

	hf, ok := client.NewFormatter(false, true).(*client.HumanFormatter)
	require.True(t, ok)
	assert.True(t, hf.Quiet)
}

func TestHumanFormatter_FormatUpload(t *testing.T) {
	var buf bytes.Buffer
	err := (&client.HumanFormatter{}).FormatUpload(&buf, []client.UploadResult{
		{LocalPath: "a.bin", RemotePath: "b/a.bin", Size: 1024},
		{LocalPath: "c.bin", Err: errors.New("The resource already exists")},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Uploaded: b/a.bin (1.0 KB)")
	assert.Contains(t, out, "Error: c.bin - The resource already exists")

	buf.Reset()
	require.NoError(t, (&client.HumanFormatter{Quiet: true}).FormatUpload(&buf, []client.UploadResult{{RemotePath: "b/a.bin"}}))
	assert.Empty(t, buf.String())
}

func TestHumanFormatter_FormatDownload(t *testing.T) {
	var buf bytes.Buffer
	err := (&client.HumanFormatter{}).FormatDownload(&buf, &client.DownloadResult{
		RemotePath: "b/fw.bin",
		LocalPath:  "fw.bin",
		StatusCode: 206,
		Size:       6,
		TotalSize:  10,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Downloaded: b/fw.bin -> fw.bin (6 B)")
	assert.Contains(t, out, "Partial: 6 B of 10 B")
}

func TestHumanFormatter_FormatCall(t *testing.T) {
	var buf bytes.Buffer
	f := &client.HumanFormatter{}

	require.NoError(t, f.FormatCall(&buf, &client.CallResult{Name: "report-event", Data: json.RawMessage("null")}))
	assert.Equal(t, "OK: report-event\n", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatCall(&buf, &client.CallResult{Name: "get-goal", Data: json.RawMessage(`{"a":1}`)}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
}

func TestHumanFormatter_FormatCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&client.HumanFormatter{}).FormatCommands(&buf, client.ListCommands(broker.DefaultSchema)))

	out := buf.String()
	assert.Contains(t, out, "(storage)")
	assert.Contains(t, out, "toit_artemis.get_goal")
	assert.Contains(t, out, "pod-registry-pod-ids-by-reference")
}

func TestHumanFormatter_Profiles(t *testing.T) {
	profiles := []client.Profile{
		{Name: "local", Endpoint: "http://localhost:8000/"},
		{Name: "prod", Endpoint: "https://p.supabase.co/functions/v1/b", Token: "eyJhbGciOiJIUzI1NiJ9"},
	}

	var buf bytes.Buffer
	f := &client.HumanFormatter{}
	require.NoError(t, f.FormatProfileList(&buf, profiles, "prod", false))
	out := buf.String()
	assert.Contains(t, out, "* prod")
	assert.Contains(t, out, "(not set)")
	assert.Contains(t, out, "eyJh...NiJ9")
	assert.NotContains(t, out, "eyJhbGciOiJIUzI1NiJ9")

	buf.Reset()
	require.NoError(t, f.FormatProfileShow(&buf, profiles[1], true, true))
	assert.Contains(t, buf.String(), "Name:     prod (default)")
	assert.Contains(t, buf.String(), "Token:    eyJhbGciOiJIUzI1NiJ9")
}

func TestJSONFormatter(t *testing.T) {
	f := &client.JSONFormatter{}

	t.Run("upload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatUpload(&buf, []client.UploadResult{
			{LocalPath: "a", RemotePath: "b/a", Size: 3},
			{LocalPath: "c", RemotePath: "b/c", Err: errors.New("boom")},
		}))
		assert.JSONEq(t, `[
			{"local_path":"a","remote_path":"b/a","size_bytes":3},
			{"local_path":"c","remote_path":"b/c","error":"boom"}
		]`, buf.String())
	})

	t.Run("call", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatCall(&buf, &client.CallResult{Name: "get-devices", Data: json.RawMessage(`[{"id":1}]`)}))
		assert.JSONEq(t, `{"command":"get-devices","data":[{"id":1}]}`, buf.String())

		buf.Reset()
		require.NoError(t, f.FormatCall(&buf, &client.CallResult{Name: "report-event"}))
		assert.JSONEq(t, `{"command":"report-event","data":null}`, buf.String())
	})

	t.Run("error", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatError(&buf, &client.ServerError{StatusCode: 418, Message: "invalid path"}))
		assert.JSONEq(t, `{"error":"invalid path"}`, buf.String())
	})

	t.Run("profile show masks token", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatProfileShow(&buf, client.Profile{Name: "p", Endpoint: "e", Token: "short"}, false, false))
		assert.JSONEq(t, `{"name":"p","endpoint":"e","token":"********","default":false}`, buf.String())
	})
}
