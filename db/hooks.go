package db

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Hook interface
// ─────────────────────────────────────────────────────────────────────────────

// Hook is called before and after every statement execution.
//
// BeforeQuery may return a derived context (for example one carrying a trace
// span); that context is used for the driver call and handed to AfterQuery.
// Implementations MUST be goroutine-safe and SHOULD be non-blocking.
// Panics inside a hook are recovered by the hook chain and logged.
type Hook interface {
	BeforeQuery(ctx context.Context, query string, args []any) context.Context

	// AfterQuery is invoked after the driver returns. err is the already
	// mapped error returned to the caller, nil on success.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// hookChain: internal dispatcher
// ─────────────────────────────────────────────────────────────────────────────

type hookChain struct {
	hooks []Hook
}

func newHookChain(hooks []Hook) hookChain {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return hookChain{hooks: filtered}
}

func (c hookChain) Before(ctx context.Context, query string, args []any) context.Context {
	for _, h := range c.hooks {
		ctx = safeBeforeQuery(h, ctx, query, args)
	}
	return ctx
}

func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c.hooks {
		safeAfterQuery(h, ctx, query, args, d, err)
	}
}

func safeBeforeQuery(h Hook, ctx context.Context, query string, args []any) (out context.Context) {
	out = ctx
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sqlorm/db: hook panic in BeforeQuery", "panic", r)
			out = ctx
		}
	}()
	if next := h.BeforeQuery(ctx, query, args); next != nil {
		out = next
	}
	return out
}

func safeAfterQuery(h Hook, ctx context.Context, query string, args []any, d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sqlorm/db: hook panic in AfterQuery", "panic", r)
		}
	}()
	h.AfterQuery(ctx, query, args, d, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging hook
// ─────────────────────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
	// SlowQueryThreshold logs a warning when duration exceeds this value.
	// Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// LogArgs includes bound parameters in log entries (disable in prod if
	// args may contain PII).
	LogArgs bool
}

// NewLogHook returns a Hook that emits structured log entries via slog.
func NewLogHook(cfg LogHookConfig) Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &logHook{cfg: cfg, logger: logger}
}

type logHook struct {
	cfg    LogHookConfig
	logger *slog.Logger
}

func (h *logHook) BeforeQuery(ctx context.Context, _ string, _ []any) context.Context { return ctx }

func (h *logHook) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	attrs := []any{
		slog.String("sql", trimQuery(query)),
		slog.Duration("duration", d),
	}
	if h.cfg.LogArgs && len(args) > 0 {
		attrs = append(attrs, slog.Any("args", args))
	}

	if err != nil {
		h.logger.ErrorContext(ctx, "sqlorm/db: statement error", append(attrs, slog.Any("error", err))...)
		return
	}

	if h.cfg.SlowQueryThreshold > 0 && d > h.cfg.SlowQueryThreshold {
		h.logger.WarnContext(ctx, "sqlorm/db: slow statement", attrs...)
		return
	}

	h.logger.DebugContext(ctx, "sqlorm/db: statement", attrs...)
}

func trimQuery(q string) string {
	if len(q) > 500 {
		return q[:500] + "…"
	}
	return q
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics hook
// ─────────────────────────────────────────────────────────────────────────────

// MetricsCollector is the interface a metrics backend implements.
type MetricsCollector interface {
	// RecordQuery is called after every statement; success is err == nil.
	RecordQuery(query string, duration time.Duration, success bool)
}

// NewMetricsHook returns a Hook that delegates to a MetricsCollector.
func NewMetricsHook(collector MetricsCollector) Hook {
	return &metricsHook{c: collector}
}

type metricsHook struct{ c MetricsCollector }

func (h *metricsHook) BeforeQuery(ctx context.Context, _ string, _ []any) context.Context { return ctx }
func (h *metricsHook) AfterQuery(_ context.Context, query string, _ []any, d time.Duration, err error) {
	h.c.RecordQuery(query, d, err == nil)
}

// QueryStats is an in-process MetricsCollector counting statements per SQL
// text. It backs the demo's pool report and the hook tests.
type QueryStats struct {
	mu     sync.Mutex
	counts map[string]StatementStats
}

// StatementStats aggregates executions of one statement text.
type StatementStats struct {
	Calls    int
	Failures int
	Total    time.Duration
}

func (s *QueryStats) RecordQuery(query string, d time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]StatementStats)
	}
	st := s.counts[query]
	st.Calls++
	st.Total += d
	if !success {
		st.Failures++
	}
	s.counts[query] = st
}

// Snapshot returns a copy of the collected statistics.
func (s *QueryStats) Snapshot() map[string]StatementStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]StatementStats, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Tracing hook
// ─────────────────────────────────────────────────────────────────────────────

// Tracer is the interface a tracing backend implements.
type Tracer interface {
	// StartSpan is called before the statement. The returned context must
	// carry the span so that EndSpan can finish it.
	StartSpan(ctx context.Context, query string) context.Context
	// EndSpan is called after the statement completes.
	EndSpan(ctx context.Context, err error)
}

// NewTracingHook returns a Hook wrapping a Tracer.
func NewTracingHook(t Tracer) Hook { return &tracingHook{t: t} }

type tracingHook struct{ t Tracer }

func (h *tracingHook) BeforeQuery(ctx context.Context, query string, _ []any) context.Context {
	return h.t.StartSpan(ctx, query)
}

func (h *tracingHook) AfterQuery(ctx context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.t.EndSpan(ctx, err)
}
