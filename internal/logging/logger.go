// Package logging provides categorized file-based logging for the audit
// engine. Each category writes to its own file under the configured log
// directory. When debug mode is off the package is a silent no-op, so hot
// paths can log freely without guarding call sites.
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
	CategoryBoot     Category = "boot"     // Startup and configuration
	CategoryAPI      Category = "api"      // Provider API calls
	CategoryDetect   Category = "detect"   // Mention detection and ranking
	CategoryDispatch Category = "dispatch" // Batch dispatch pool
	CategoryCampaign Category = "campaign" // Campaign orchestration
	CategoryProgress Category = "progress" // Progress broker pub/sub
	CategoryStore    Category = "store"    // SQLite persistence
)

// Options controls logger construction.
type Options struct {
	Dir        string          // Directory for log files
	DebugMode  bool            // When false, all loggers are no-ops
	Level      string          // debug/info/warn/error (default info)
	Categories map[string]bool // nil = all categories enabled
}

var (
	mu      sync.RWMutex
	opts    Options
	level   zapcore.Level
	loggers = make(map[Category]*zap.SugaredLogger)
	nop     = zap.NewNop().Sugar()
)

// Initialize configures the logging system. Call once at startup before
// any Get. Safe to call again to reconfigure (e.g. in tests).
func Initialize(o Options) error {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range loggers {
		_ = l.Sync()
	}
	loggers = make(map[Category]*zap.SugaredLogger)
	opts = o

	switch o.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	if !o.DebugMode {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("log directory required in debug mode")
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// IsDebugMode reports whether file logging is active.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.DebugMode
}

func categoryEnabled(c Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(c)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op
// logger when debug mode or the category is disabled.
func Get(c Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	enabled := categoryEnabled(c)
	dir := opts.Dir
	mu.RUnlock()

	if !enabled || dir == "" {
		return nop
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}

	// Date prefix keeps rotation trivial.
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), c)
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open log file for %s: %v\n", c, err)
		return nop
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), level)
	l := zap.New(core).Sugar().Named(string(c))
	loggers[c] = l
	return l
}

// CloseAll flushes and drops all open loggers. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Convenience functions for the hot categories. No-ops when disabled.

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Infof(format, args...) }

// API logs to the api category.
func API(format string, args ...interface{}) { Get(CategoryAPI).Infof(format, args...) }

// APIDebug logs debug to the api category.
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debugf(format, args...) }

// Detect logs to the detect category.
func Detect(format string, args ...interface{}) { Get(CategoryDetect).Infof(format, args...) }

// Dispatch logs to the dispatch category.
func Dispatch(format string, args ...interface{}) { Get(CategoryDispatch).Infof(format, args...) }

// DispatchDebug logs debug to the dispatch category.
func DispatchDebug(format string, args ...interface{}) { Get(CategoryDispatch).Debugf(format, args...) }

// Campaign logs to the campaign category.
func Campaign(format string, args ...interface{}) { Get(CategoryCampaign).Infof(format, args...) }

// CampaignError logs error to the campaign category.
func CampaignError(format string, args ...interface{}) { Get(CategoryCampaign).Errorf(format, args...) }

// Progress logs to the progress category.
func Progress(format string, args ...interface{}) { Get(CategoryProgress).Infof(format, args...) }

// ProgressDebug logs debug to the progress category.
func ProgressDebug(format string, args ...interface{}) { Get(CategoryProgress).Debugf(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Infof(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}
