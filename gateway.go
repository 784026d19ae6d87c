package broker

import (
	"context"
	"log/slog"
)

// Gateway decodes request bodies and routes them to a backend.
type Gateway struct {
	router *Router
}

// NewGateway creates a Gateway dispatching through router.
func NewGateway(router *Router) *Gateway {
	return &Gateway{router: router}
}

// Handle decodes body and executes it against backend. The returned command
// is zero when the body could not be decoded far enough to read one.
func (g *Gateway) Handle(ctx context.Context, body []byte, backend Backend) (Command, Outcome, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return 0, nil, err
	}

	slog.DebugContext(ctx, "handling command", "command", env.Command)

	req, err := ParseRequest(env)
	if err != nil {
		return env.Command, nil, err
	}

	outcome, err := g.router.Dispatch(ctx, req, backend)
	if err != nil {
		return env.Command, nil, err
	}
	return env.Command, outcome, nil
}
