package client

import (
	"encoding/json"

	"github.com/toitware/broker"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath  string
	RemotePath string // bucket/object, or bucket/prefix when Recursive
	Recursive  bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
	Size       int64  `json:"size_bytes"`
	Err        error  `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	RemotePath string
	LocalPath  string // empty = derive from remote, "-" = stdout
	Offset     int64
	Public     bool
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	RemotePath  string `json:"remote_path"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	StatusCode  int    `json:"status"`
	// Size is the number of bytes received, TotalSize the size of the whole
	// object when the server reported it.
	Size      int64 `json:"size_bytes"`
	TotalSize int64 `json:"total_size_bytes,omitempty"`
}

// Partial reports whether only part of the object was received.
func (r *DownloadResult) Partial() bool {
	return r.StatusCode == 206
}

// CallResult is the result of a procedure command.
type CallResult struct {
	Command broker.Command  `json:"-"`
	Name    string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// CommandInfo describes a command for listings.
type CommandInfo struct {
	ID          uint8  `json:"id"`
	Name        string `json:"name"`
	Procedure   string `json:"procedure,omitempty"`
	ReturnsData bool   `json:"returns_data"`
}

// ListCommands describes every command the gateway accepts.
func ListCommands(schema string) []CommandInfo {
	if schema == "" {
		schema = broker.DefaultSchema
	}

	cmds := broker.Commands()
	infos := make([]CommandInfo, 0, len(cmds))
	for _, c := range cmds {
		info := CommandInfo{ID: uint8(c), Name: c.String()}
		if name, returnsData, ok := c.Procedure(); ok {
			info.Procedure = schema + "." + name
			info.ReturnsData = returnsData
		} else {
			info.ReturnsData = c == broker.CommandDownload
		}
		infos = append(infos, info)
	}
	return infos
}
