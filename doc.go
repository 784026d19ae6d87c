// Package broker implements a single-endpoint command gateway for the
// Artemis device broker.
//
// Clients send one POST body per operation. The first byte selects the
// command; the rest is either an upload payload ("bucket/object\x00bytes")
// or a JSON object of parameters. The gateway turns each command into one
// backend action: a storage operation (upload, download, public URL fetch)
// or a named procedure call in the broker schema.
//
// # Key Components
//
//   - DecodeEnvelope, DecodeUploadPayload, DecodeStructuredPayload: wire codec
//   - SplitPath: "bucket/object" addressing
//   - ParseRequest: typed requests (UploadRequest, DownloadRequest, ProcedureRequest)
//   - Router: dispatches a request to a Backend and returns an Outcome
//   - Gateway: decode + dispatch for one request body
//   - Backend, Connector: per-request capability handle built from the
//     caller's Authorization header
//
// # Outcomes
//
// A dispatched request yields one of:
//
//   - DataOutcome: JSON data, null when the procedure returns nothing
//   - BinaryOutcome: object bytes plus the total object size
//   - ForwardedOutcome: an upstream response relayed verbatim (public downloads)
//
// Every failure is an *Error whose Kind is one of the Err* sentinels. The
// http package renders all of them with status 418 and the message as a JSON
// string.
//
// # Example Usage
//
//	gw := broker.NewGateway(broker.NewRouter(broker.DefaultSchema))
//	backend := connector.Connect(r.Header.Get("Authorization"))
//	cmd, outcome, err := gw.Handle(ctx, body, backend)
//
// See the supabase and local packages for backend implementations.
package broker
