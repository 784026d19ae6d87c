package broker

import (
	"encoding/json"
	"net/http"
)

// Outcome is the successful result of dispatching a request.
// The concrete types are DataOutcome, BinaryOutcome and ForwardedOutcome.
type Outcome interface {
	outcome()
}

// DataOutcome carries a JSON result. A nil Data is sent as JSON null.
type DataOutcome struct {
	Data json.RawMessage
}

// BinaryOutcome carries object bytes. TotalSize is the size of the whole
// object; when it differs from len(Bytes) the response is partial content.
type BinaryOutcome struct {
	Bytes     []byte
	TotalSize int64
}

// IsPartial reports whether Bytes covers only part of the object.
func (b BinaryOutcome) IsPartial() bool {
	return int64(len(b.Bytes)) != b.TotalSize
}

// ForwardedOutcome is an upstream response relayed to the client verbatim.
// The receiver owns Response.Body and must close it.
type ForwardedOutcome struct {
	Response *http.Response
}

func (DataOutcome) outcome()      {}
func (BinaryOutcome) outcome()    {}
func (ForwardedOutcome) outcome() {}
