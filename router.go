package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Router executes a decoded request against a backend.
type Router struct {
	schema string
}

// NewRouter returns a Router that qualifies procedure names with schema.
// An empty schema selects DefaultSchema.
func NewRouter(schema string) *Router {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Router{schema: schema}
}

// Dispatch performs exactly one backend action for req.
//
// Failures are always *Error values. Backend failures carry the backend's
// message; if a backend reports data together with an error, the data is dropped.
func (r *Router) Dispatch(ctx context.Context, req Request, backend Backend) (Outcome, error) {
	switch req := req.(type) {
	case UploadRequest:
		return r.upload(ctx, req, backend)
	case DownloadRequest:
		return r.download(ctx, req, backend)
	case ProcedureRequest:
		return r.call(ctx, req, backend)
	default:
		return nil, newError(ErrUnknownCommand, "unknown command %d", req.Command())
	}
}

func (r *Router) upload(ctx context.Context, req UploadRequest, storage Storage) (Outcome, error) {
	slog.DebugContext(ctx, "uploading", "bucket", req.Path.Bucket, "object", req.Path.Object, "size", len(req.Data))

	err := storage.Upload(ctx, req.Path.Bucket, req.Path.Object, req.Data, UploadOptions{Upsert: true})
	if err != nil {
		return nil, BackendError(err)
	}
	return DataOutcome{}, nil
}

func (r *Router) download(ctx context.Context, req DownloadRequest, backend Backend) (Outcome, error) {
	slog.DebugContext(ctx, "downloading",
		"bucket", req.Path.Bucket,
		"object", req.Path.Object,
		"offset", req.Offset,
		"public", req.Public,
	)

	if req.Public {
		url := backend.PublicURL(req.Path.Bucket, req.Path.Object)
		header := http.Header{}
		if req.Offset != 0 {
			header.Set("Range", fmt.Sprintf("bytes=%d-", req.Offset))
		}

		slog.DebugContext(ctx, "public download", "url", url)
		resp, err := backend.Fetch(ctx, url, header)
		if err != nil {
			return nil, BackendError(err)
		}
		return ForwardedOutcome{Response: resp}, nil
	}

	if req.Offset != 0 {
		return nil, newError(ErrUnsupportedRange, "offset not supported for private downloads")
	}

	data, err := backend.Download(ctx, req.Path.Bucket, req.Path.Object)
	if err != nil {
		return nil, BackendError(err)
	}
	return BinaryOutcome{Bytes: data, TotalSize: int64(len(data))}, nil
}

func (r *Router) call(ctx context.Context, req ProcedureRequest, procedures Procedures) (Outcome, error) {
	name := r.schema + "." + req.Procedure
	slog.DebugContext(ctx, "calling procedure", "procedure", name)

	data, err := procedures.Call(ctx, name, req.Params)
	if err != nil {
		return nil, BackendError(err)
	}

	if !req.ReturnsData {
		return DataOutcome{}, nil
	}
	return DataOutcome{Data: data}, nil
}
