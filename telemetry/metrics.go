// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics register on the default registry at package init so every import
// path (binary or test) sees live collectors.
var (
	// Counters
	MessagesTotal    = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_messages_total", Help: "Messages persisted and broadcast, by kind"}, []string{"kind"})
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_messages_rejected_total", Help: "Inbound messages rejected, by reason"}, []string{"reason"})
	PersonaTicks     = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_persona_ticks_total", Help: "Persona scheduler tick evaluations"})
	PersonaPosts     = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_persona_posts_total", Help: "Persona messages injected into the room"})
	PersonaFailures  = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_persona_failures_total", Help: "Persona generation or injection failures"})
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_connections_total", Help: "Websocket connections accepted"})
	AuthFailures     = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_auth_failures_total", Help: "Connection attempts rejected at the handshake"})

	// Histograms (seconds)
	BroadcastDuration prometheus.Observer = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_broadcast_duration_seconds", Help: "Room fan-out duration seconds", Buckets: prometheus.DefBuckets})

	// Gauges
	ConnectedParticipants = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_connected_participants", Help: "Currently connected human participants"})
)

// SetConnected records the current human connection count.
func SetConnected(n int) {
	ConnectedParticipants.Set(float64(n))
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
