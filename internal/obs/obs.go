package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type scenarioContextKey struct{}

// Scenario carries per-run correlation identifiers.
type Scenario struct {
	RunID    string
	Name     string
	Engine   string
	Target   string
	Username string
}

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
	level    = new(slog.LevelVar)
)

// Init configures the global structured logger.
func Init() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		return
	}
	logger = newLogger(os.Stderr)
	slog.SetDefault(logger)
}

// SetLevel changes the minimum level of the global logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutputForTests overrides the global logger output for tests.
func SetOutputForTests(w io.Writer) func() {
	loggerMu.Lock()
	prev := logger
	logger = newLogger(w)
	slog.SetDefault(logger)
	loggerMu.Unlock()

	return func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if prev != nil {
			logger = prev
		} else {
			logger = newLogger(os.Stderr)
		}
		slog.SetDefault(logger)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				t, ok := attr.Value.Any().(time.Time)
				if ok {
					return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
				}
			}
			return attr
		},
	})
	return slog.New(handler)
}

func globalLogger() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Pkg returns a logger tagged with package name.
func Pkg(pkg string) *slog.Logger {
	return globalLogger().With("pkg", pkg)
}

// From returns a logger with scenario fields from context.
func From(ctx context.Context) *slog.Logger {
	l := globalLogger()
	attrs := scenarioAttrs(ScenarioFromContext(ctx))
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithScenario stores scenario fields in context. A missing RunID is generated.
func WithScenario(ctx context.Context, sc Scenario) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing := ScenarioFromContext(ctx)
	if sc.RunID != "" {
		existing.RunID = sc.RunID
	}
	if sc.Name != "" {
		existing.Name = sc.Name
	}
	if sc.Engine != "" {
		existing.Engine = sc.Engine
	}
	if sc.Target != "" {
		existing.Target = sc.Target
	}
	if sc.Username != "" {
		existing.Username = sc.Username
	}
	if existing.RunID == "" {
		existing.RunID = NewRunID()
	}
	return context.WithValue(ctx, scenarioContextKey{}, existing)
}

// ScenarioFromContext returns scenario fields from context.
func ScenarioFromContext(ctx context.Context) Scenario {
	if ctx == nil {
		return Scenario{}
	}
	sc, ok := ctx.Value(scenarioContextKey{}).(Scenario)
	if !ok {
		return Scenario{}
	}
	return sc
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run-" + uuid.NewString()
}

func scenarioAttrs(sc Scenario) []any {
	attrs := make([]any, 0, 10)
	if sc.RunID != "" {
		attrs = append(attrs, "run_id", sc.RunID)
	}
	if sc.Name != "" {
		attrs = append(attrs, "scenario", sc.Name)
	}
	if sc.Engine != "" {
		attrs = append(attrs, "engine", sc.Engine)
	}
	if sc.Target != "" {
		attrs = append(attrs, "target", sc.Target)
	}
	if sc.Username != "" {
		attrs = append(attrs, "username", sc.Username)
	}
	return attrs
}
