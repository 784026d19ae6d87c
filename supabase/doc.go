// Package supabase implements broker.Backend on top of a Supabase project's
// storage and REST APIs.
//
// A Connector holds the project URL and anon key. Each incoming request gets
// its own Client carrying that request's Authorization header, so row level
// security policies apply to the caller:
//
//	connector, err := supabase.NewConnector(supabase.Config{
//	    URL:     "https://xyz.supabase.co",
//	    AnonKey: anonKey,
//	})
//	backend := connector.Connect("Bearer " + userJWT)
//
// Procedure names go into the rpc URL unchanged, so "toit_artemis.set_goal"
// posts to /rest/v1/rpc/toit_artemis.set_goal. Public downloads are not
// subject to the client timeout. Error responses become *APIError values
// whose message is the server's.
package supabase
