// Package telemetry provides Prometheus metrics, correlation-id aware
// logging helpers, and OpenTelemetry tracing setup.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsDispatched prometheus.Counter
	CommandsDenied     prometheus.Counter
	CommandsFailed     prometheus.Counter
	MessagesScanned    prometheus.Counter
	ChannelsSkipped    prometheus.Counter
	DeletionsRecorded  prometheus.Counter
	ChunksSent         prometheus.Counter
	AutorepliesSent    prometheus.Counter

	// Histograms (seconds)
	ScanDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsDispatched = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_dispatched_total", Help: "Number of commands dispatched to handlers"})
		CommandsDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_denied_total", Help: "Number of commands silently denied by permission checks"})
		CommandsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_failed_total", Help: "Number of command executions that ended in an error"})
		MessagesScanned = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_scanned_total", Help: "Number of history messages scanned by emoji counts"})
		ChannelsSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_channels_skipped_total", Help: "Number of channels skipped during scans due to access denial"})
		DeletionsRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_deletions_recorded_total", Help: "Number of deletion audit records written"})
		ChunksSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_chunks_sent_total", Help: "Number of outbound message chunks sent"})
		AutorepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_autoreplies_sent_total", Help: "Number of autoreplies sent"})
		ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_scan_duration_seconds", Help: "Emoji count scan duration seconds", Buckets: prometheus.DefBuckets})
	})
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

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
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
