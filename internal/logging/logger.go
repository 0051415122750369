// Package logging provides config-driven categorized logging for sourcepilot.
// Each category writes to its own file under <workspace>/.sourcepilot/logs/,
// backed by zap cores. Logging is controlled by the debug_mode toggle in the
// workspace config - when false, no log files are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot          Category = "boot"          // Startup and wiring
	CategorySupervisor    Category = "supervisor"    // Governance decisions, stage gating
	CategoryIntent        Category = "intent"        // Intent classification and routing
	CategoryAgent         Category = "agent"         // Agent execution loop
	CategoryTask          Category = "task"          // Task phase execution
	CategoryMemory        Category = "memory"        // Case memory updates
	CategoryContradiction Category = "contradiction" // Contradiction detection
	CategoryStore         Category = "store"         // Case store operations
	CategoryRetrieval     Category = "retrieval"     // Document/records retrieval
	CategoryLLM           Category = "llm"           // LLM calls and fallbacks
)

// Settings mirrors the logging section of the workspace config. Kept local to
// avoid a dependency on internal/config.
type Settings struct {
	DebugMode  bool
	Level      string
	Categories map[string]bool
}

// Logger writes to one category file. The zero value is a no-op logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	settings Settings
	minLevel zapcore.Level
)

// Initialize sets up the logging directory from explicit settings. Call once
// at startup with the workspace path. A disabled debug mode is a silent no-op.
func Initialize(workspace string, s Settings) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	mu.Lock()
	settings = s
	minLevel = parseLevel(s.Level)
	logsDir = filepath.Join(workspace, ".sourcepilot", "logs")
	mu.Unlock()

	if !s.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Infof("=== sourcepilot logging initialized ===")
	boot.Infof("logs directory: %s", logsDir)
	boot.Infof("level: %s", s.Level)
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsCategoryEnabled reports whether a category is enabled under the current
// settings. All categories are enabled by default in debug mode.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, ok := settings.Categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op logger
// when debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	dir := logsDir
	level := minLevel
	mu.RUnlock()

	if dir == "" {
		return &Logger{category: category}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	path := filepath.Join(dir, string(category)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &Logger{category: category}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(file),
		level,
	)
	l := &Logger{
		category: category,
		sugar:    zap.New(core).Sugar().Named(string(category)),
	}
	loggers[category] = l
	return l
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// CloseAll flushes and drops all category loggers. Called at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for cat, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		delete(loggers, cat)
	}
}

// Convenience helpers for the hot categories.

// Supervisor logs to the supervisor category at info level.
func Supervisor(format string, args ...any) { Get(CategorySupervisor).Infof(format, args...) }

// Intent logs to the intent category at info level.
func Intent(format string, args ...any) { Get(CategoryIntent).Infof(format, args...) }

// Agent logs to the agent category at info level.
func Agent(format string, args ...any) { Get(CategoryAgent).Infof(format, args...) }

// Task logs to the task category at info level.
func Task(format string, args ...any) { Get(CategoryTask).Infof(format, args...) }

// TaskDebug logs to the task category at debug level.
func TaskDebug(format string, args ...any) { Get(CategoryTask).Debugf(format, args...) }

// Memory logs to the memory category at info level.
func Memory(format string, args ...any) { Get(CategoryMemory).Infof(format, args...) }

// Store logs to the store category at info level.
func Store(format string, args ...any) { Get(CategoryStore).Infof(format, args...) }

// StoreDebug logs to the store category at debug level.
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debugf(format, args...) }

// Retrieval logs to the retrieval category at info level.
func Retrieval(format string, args ...any) { Get(CategoryRetrieval).Infof(format, args...) }

// LLM logs to the llm category at info level.
func LLM(format string, args ...any) { Get(CategoryLLM).Infof(format, args...) }

// =============================================================================
// PERFORMANCE TIMING
// =============================================================================

// Timer measures one operation's duration into a category log.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop ends the timer and logs the elapsed time at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s took %v", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when elapsed exceeds the threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnf("SLOW: %s took %v (threshold %v)", t.operation, elapsed, threshold)
	} else {
		Get(t.category).Debugf("%s took %v", t.operation, elapsed)
	}
	return elapsed
}
