package broker

import (
	"encoding/json"
)

// Request is a decoded command together with its typed parameters.
// The concrete types are UploadRequest, DownloadRequest and ProcedureRequest.
type Request interface {
	Command() Command
}

// UploadRequest stores Data at Path, replacing any existing object.
type UploadRequest struct {
	Path StoragePath
	Data []byte
}

func (UploadRequest) Command() Command { return CommandUpload }

// DownloadRequest fetches the object at Path starting at Offset.
// Public objects are fetched through their public URL, which supports ranges.
type DownloadRequest struct {
	Path   StoragePath
	Offset int64
	Public bool
}

func (DownloadRequest) Command() Command { return CommandDownload }

// ProcedureRequest invokes a named backend procedure with the client's
// parameters. Params is passed through untouched.
type ProcedureRequest struct {
	Cmd         Command
	Procedure   string
	Params      json.RawMessage
	ReturnsData bool
}

func (r ProcedureRequest) Command() Command { return r.Cmd }

type downloadParams struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Public any    `json:"public"`
}

// DecodeRequest decodes a request body into a typed request.
//
// The command is validated before its payload is looked at, so an unknown
// command is always reported as such.
func DecodeRequest(body []byte) (Request, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	return ParseRequest(env)
}

// ParseRequest builds the typed request for env.
func ParseRequest(env Envelope) (Request, error) {
	if !env.Command.IsValid() {
		return nil, newError(ErrUnknownCommand, "unknown command %d", env.Command)
	}

	if env.Command == CommandUpload {
		return parseUpload(env.Payload)
	}

	params, err := DecodeStructuredPayload(env.Payload)
	if err != nil {
		return nil, err
	}

	if env.Command == CommandDownload {
		return parseDownload(params)
	}

	name, returnsData, _ := env.Command.Procedure()
	return ProcedureRequest{
		Cmd:         env.Command,
		Procedure:   name,
		Params:      params,
		ReturnsData: returnsData,
	}, nil
}

func parseUpload(payload []byte) (Request, error) {
	upload, err := DecodeUploadPayload(payload)
	if err != nil {
		return nil, err
	}

	path, err := SplitPath(upload.Path)
	if err != nil {
		return nil, err
	}

	return UploadRequest{Path: path, Data: upload.Data}, nil
}

func parseDownload(params json.RawMessage) (Request, error) {
	var p downloadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newError(ErrMalformedJSON, "invalid download parameters: %v", err)
	}

	if p.Offset < 0 {
		return nil, newError(ErrMalformedJSON, "invalid download offset: %d", p.Offset)
	}

	path, err := SplitPath(p.Path)
	if err != nil {
		return nil, err
	}

	// Only a literal true selects the public URL.
	public, _ := p.Public.(bool)

	return DownloadRequest{Path: path, Offset: p.Offset, Public: public}, nil
}
