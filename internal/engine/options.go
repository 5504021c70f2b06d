package engine

import (
	"log/slog"
	"time"

	"github.com/kubiyabot/skill-engine/internal/audit"
	"github.com/kubiyabot/skill-engine/internal/observability"
)

// Option configures an Engine at construction time, following the
// functional-options pattern instead of a global configuration object.
type Option func(*Engine)

// WithLogger overrides the Engine's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a Metrics collector; invocations are unobserved
// without one.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithAuditLogger attaches an audit.Logger; invocations are unaudited
// without one.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(e *Engine) { e.audit = logger }
}

// WithClock overrides the Engine's time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithTracer attaches a tracer; invocations are untraced without one. The
// no-op tracer returned by observability.NewTracer with an empty Endpoint
// is safe to pass here.
func WithTracer(tracer *observability.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}
