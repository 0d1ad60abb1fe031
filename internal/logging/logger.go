package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerService interface {
	Log(value string)
	LogError(value string, err error)
	LogWarning(value string)
	LogSuccess(value string)
}

type Options struct {
	Level   string
	Format  string
	Verbose bool
	LogFile string
}

// NewZap builds the process logger. Console output is human readable unless
// Format is "json"; LogFile, when set, receives the same entries.
func NewZap(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(opts.Format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if opts.Level != "" {
		if parsed, err := zapcore.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	if opts.Verbose {
		level = zap.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if path := strings.TrimSpace(opts.LogFile); path != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, path)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, path)
	}
	return cfg.Build()
}

// Logger is the status surface used across the uploader. Every entry goes to
// zap; warnings, errors and successes are also sent to the notifier when one
// is configured.
type Logger struct {
	zap      *zap.Logger
	notifier LoggerService
}

func NewLogger(z *zap.Logger, notifier LoggerService) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{zap: z, notifier: notifier}
}

func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.zap
}

func (l *Logger) Log(value string) {
	if l == nil {
		return
	}
	l.zap.Info(value)
}

func (l *Logger) Debug(value string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.zap.Debug(value, fields...)
}

func (l *Logger) LogError(value string, err error) {
	if l == nil {
		return
	}
	l.zap.Error(value, zap.Error(err))
	if l.notifier != nil {
		l.notifier.LogError(value, err)
	}
}

func (l *Logger) LogWarning(value string) {
	if l == nil {
		return
	}
	l.zap.Warn(value)
	if l.notifier != nil {
		l.notifier.LogWarning(value)
	}
}

func (l *Logger) LogSuccess(value string) {
	if l == nil {
		return
	}
	l.zap.Info(value, zap.String("status", "success"))
	if l.notifier != nil {
		l.notifier.LogSuccess(value)
	}
}

func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.zap.Sync()
}
