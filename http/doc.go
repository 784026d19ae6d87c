// Package http exposes the broker gateway over HTTP.
//
// There is a single command endpoint. Each POST body is one envelope (see
// package broker); the handler builds a backend from the caller's
// Authorization header, runs the command and writes the result.
//
// # Responses
//
//   - JSON data: 200, Content-Type application/json. Absent data is null.
//   - Object bytes: 200, or 206 with Content-Range and Accept-Ranges when
//     only part of the object is returned.
//   - Public downloads: the upstream response is relayed as is.
//   - Any failure: 418 with the error message as a JSON string.
//
// # Usage
//
//	gw := broker.NewGateway(broker.NewRouter(broker.DefaultSchema))
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Path:    "/functions/v1/b",
//	    AnonKey: anonKey,
//	}, gw, connector)
//	server := &net_http.Server{Addr: ":8080", Handler: handler.Router()}
//
// Requests without an Authorization header are made with "Bearer <AnonKey>".
// GET /healthz reports HandlerConfig.Health.
//
// # Middleware
//
// RequestLogger tags requests with an id (X-Request-Id) and logs them.
// Recoverer turns handler panics into 418 responses. MaxBodySize caps the
// request body.
package http
