package supabase

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

var (
	// ErrURLRequired is returned when no project URL is configured.
	ErrURLRequired = errors.New("supabase url is required")
	// ErrInvalidURL is returned when the project URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid supabase url")
)

// APIError is an error response from the storage or REST API.
// Its Error method returns the server's message unchanged, since clients
// see it verbatim.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
	Hint       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "request failed: " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// storageError is the storage API error body.
type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// restError is the PostgREST error body.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func parseStorageError(status int, body []byte) error {
	var se storageError
	if err := json.Unmarshal(body, &se); err != nil || (se.Message == "" && se.Error == "") {
		return &APIError{StatusCode: status, Message: string(body)}
	}
	return &APIError{StatusCode: status, Code: se.Error, Message: se.Message}
}

func parseRESTError(status int, body []byte) error {
	var re restError
	if err := json.Unmarshal(body, &re); err != nil || re.Message == "" {
		return &APIError{StatusCode: status, Message: string(body)}
	}
	return &APIError{
		StatusCode: status,
		Code:       re.Code,
		Message:    re.Message,
		Details:    re.Details,
		Hint:       re.Hint,
	}
}
