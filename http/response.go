package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/toitware/broker"
)

// StatusGatewayError is the status of every failed command.
const StatusGatewayError = http.StatusTeapot

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// WriteError writes message as a JSON string with StatusGatewayError.
func WriteError(w http.ResponseWriter, message string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(message); err != nil {
		slog.Error("failed to encode error response", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusGatewayError)
	_, _ = w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// HandleError writes the error response for err. All failures share one
// status; clients tell them apart by message.
func HandleError(w http.ResponseWriter, err error) {
	var gwErr *broker.Error
	if errors.As(err, &gwErr) && !errors.Is(err, broker.ErrBackend) {
		slog.Debug("request error", "error", err)
	} else {
		slog.Error("request error", "error", err)
	}

	WriteError(w, err.Error())
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// WriteOutcome writes a successful command result.
func WriteOutcome(w http.ResponseWriter, outcome broker.Outcome) error {
	switch o := outcome.(type) {
	case broker.DataOutcome:
		return writeData(w, o)
	case broker.BinaryOutcome:
		return writeBinary(w, o)
	case broker.ForwardedOutcome:
		return writeForwarded(w, o)
	case nil:
		return writeData(w, broker.DataOutcome{})
	default:
		return fmt.Errorf("write outcome: unsupported outcome %T", outcome)
	}
}

func writeData(w http.ResponseWriter, o broker.DataOutcome) error {
	data := o.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(data)
	return err
}

func writeBinary(w http.ResponseWriter, o broker.BinaryOutcome) error {
	size := len(o.Bytes)

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(size))

	status := http.StatusOK
	if o.IsPartial() {
		h.Set("Accept-Ranges", "bytes")
		h.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, o.TotalSize))
		status = http.StatusPartialContent
	}

	w.WriteHeader(status)
	_, err := w.Write(o.Bytes)
	return err
}

func writeForwarded(w http.ResponseWriter, o broker.ForwardedOutcome) error {
	resp := o.Response
	defer func() { _ = resp.Body.Close() }()

	h := w.Header()
	for k, v := range resp.Header {
		h[k] = v
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}

	w.WriteHeader(resp.StatusCode)
	_, err := io.Copy(w, resp.Body)
	return err
}
