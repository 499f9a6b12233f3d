package mcp

import "log/slog"

type serverConfig struct {
	logger      *slog.Logger
	concurrency int
}

func defaultServerConfig() *serverConfig {
	return &serverConfig{logger: slog.Default(), concurrency: 64}
}

// ServerOption configures a Server built by Builder.Build, following the
// teacher's functional-options construction style
// (mcp_golang.WithName/WithVersion in examples/http_example/server/main.go).
type ServerOption func(*serverConfig)

// WithLogger overrides the server's structured logger (default slog.Default()).
func WithLogger(logger *slog.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = logger }
}

// WithConcurrencyLimit bounds how many handler invocations may run
// concurrently; additional inbound requests block the receive loop until
// a slot frees, providing back-pressure instead of unbounded goroutines.
func WithConcurrencyLimit(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

type clientConfig struct {
	logger      *slog.Logger
	concurrency int

	roots       *RootsCapability
	sampling    SamplingHandler
	elicitation ElicitationHandler
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{logger: slog.Default(), concurrency: 64}
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithClientLogger overrides the client's structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = logger }
}

// WithClientConcurrencyLimit bounds concurrent inbound-request handling
// (sampling/elicitation callbacks) on the client side.
func WithClientConcurrencyLimit(n int) ClientOption {
	return func(c *clientConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRoots advertises the client's roots capability.
func WithRoots(listChanged bool) ClientOption {
	return func(c *clientConfig) { c.roots = &RootsCapability{ListChanged: listChanged} }
}

// WithSamplingHandler registers h to answer the server's
// sampling/createMessage requests and advertises the sampling capability.
func WithSamplingHandler(h SamplingHandler) ClientOption {
	return func(c *clientConfig) { c.sampling = h }
}

// WithElicitationHandler registers h to answer the server's
// elicitation/create requests and advertises the elicitation capability.
func WithElicitationHandler(h ElicitationHandler) ClientOption {
	return func(c *clientConfig) { c.elicitation = h }
}
