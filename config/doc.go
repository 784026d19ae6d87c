// Package config provides configuration loading and validation for the broker.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (BROKER_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with BROKER_ prefix:
//   - server.port → BROKER_SERVER_PORT
//   - backend.type → BROKER_BACKEND_TYPE
//   - local.database.dsn → BROKER_LOCAL_DATABASE_DSN
//
// SUPABASE_URL and SUPABASE_ANON_KEY, as set for Supabase edge functions,
// configure supabase.url and supabase.anon_key when the prefixed variables
// are not set.
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, command path, body size limit, timeouts and env (dev/prod)
//   - Gateway: the schema qualifying procedure names
//   - Backend: supabase or local
//   - Supabase: project URL and anonymous key
//   - Local: storage directory, public buckets, object index database and
//     the PostgreSQL database holding the procedures
//   - CORS: cross-origin resource sharing settings
//   - Metrics: Prometheus listener
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Path must start with "/"
//   - Backend must be supabase or local; supabase needs a URL
//   - Log level must be debug, info, warn, or error
package config
