package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating log file next to stdout.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Option customises Setup.
type Option func(*options)

type options struct {
	file   *FileConfig
	level  slog.Leveler
	output io.Writer
}

// WithFile tees log output into a lumberjack-rotated file.
func WithFile(cfg FileConfig) Option {
	return func(o *options) {
		if strings.TrimSpace(cfg.Path) == "" {
			return
		}
		file := cfg
		o.file = &file
	}
}

// WithLevel sets the minimum level emitted.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) { o.level = level }
}

// WithOutput replaces stdout as the primary sink. Tests use it to capture lines.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// LevelForEnv maps a deployment environment to its default verbosity.
func LevelForEnv(env string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string, opts ...Option) *slog.Logger {
	cfg := options{level: LevelForEnv(env), output: os.Stdout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	out := cfg.output
	if cfg.file != nil {
		rotating := &lumberjack.Logger{
			Filename:   cfg.file.Path,
			MaxSize:    cfg.file.MaxSizeMB,
			MaxBackups: cfg.file.MaxBackups,
			MaxAge:     cfg.file.MaxAgeDays,
			Compress:   cfg.file.Compress,
		}
		out = io.MultiWriter(cfg.output, rotating)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: false,
		Level:     cfg.level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return redactAttr(attr)
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
