package observability

import (
	"context"
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingMetric times one phase for the Server-Timing response header. The zero value
// and a nil pointer are no-ops.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

// StartServerTiming starts a metric if ctx carries a server timing header.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return StartServerTimingWithDesc(ctx, name, "")
}

// StartServerTimingWithDesc starts a metric with a description shown by browser tools.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	h := servertiming.FromContext(ctx)
	if h == nil {
		return &ServerTimingMetric{}
	}
	m := h.NewMetric(name)
	if description != "" {
		m = m.WithDesc(description)
	}
	return &ServerTimingMetric{metric: m.Start()}
}

// Stop ends the metric.
func (m *ServerTimingMetric) Stop() {
	if m == nil || m.metric == nil {
		return
	}
	m.metric.Stop()
}

// ServerTimingMiddleware adds a server timing header to the request context and writes it
// to the response.
func ServerTimingMiddleware(next http.Handler) http.Handler {
	return servertiming.Middleware(next, nil)
}

// StartPhase starts a server timing metric when the config enables it.
func (c *Config) StartPhase(ctx context.Context, name string) *ServerTimingMetric {
	if !c.ServerTimingEnabled() {
		return &ServerTimingMetric{}
	}
	return StartServerTiming(ctx, name)
}
