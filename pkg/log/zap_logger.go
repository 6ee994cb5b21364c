package log

import (
	"os"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*ZapLogger)(nil)

// ZapLogger implements Logger on top of a zap core. Child loggers created
// with WithName and WithKV share the core and differ only in name, attached
// fields and span recorder.
type ZapLogger struct {
	lg   *zap.SugaredLogger
	name string
	rec  SpanEventRecorder
}

// NewZapLogger builds a ZapLogger from cfg. Output goes to the provided
// write syncers, or to stderr when none are given.
func NewZapLogger(cfg Config, ws ...zapcore.WriteSyncer) *ZapLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "console":
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(devCfg)
	default: // "logfmt"
		encoder = zaplogfmt.NewEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer
	switch len(ws) {
	case 0:
		sink = zapcore.Lock(os.Stderr)
	case 1:
		sink = ws[0]
	default:
		sink = zapcore.NewMultiWriteSyncer(ws...)
	}

	core := zapcore.NewCore(encoder, sink, zapcore.Level(cfg.Level))
	lg := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{lg: lg.Sugar()}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
	l.recordEvent(msg, keysAndValues...)
}

func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Infow(msg, keysAndValues...)
	l.recordEvent(msg, keysAndValues...)
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.lg.Warnw(msg, keysAndValues...)
	l.recordEvent(msg, keysAndValues...)
}

func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, keysAndValues...)
	if l.rec != nil {
		l.rec.RecordError(msg, keysAndValues...)
	}
}

func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	if l.rec != nil {
		l.rec.RecordError(msg, keysAndValues...)
	}
	l.lg.Fatalw(msg, keysAndValues...)
}

// Name returns the dot-separated logger name.
func (l *ZapLogger) Name() string {
	return l.name
}

// WithName returns a child logger named <parent>.<name>.
func (l *ZapLogger) WithName(name string) Logger {
	fullName := name
	if l.name != "" {
		fullName = l.name + "." + name
	}
	return &ZapLogger{
		lg:   l.lg.Named(name),
		name: fullName,
		rec:  l.rec,
	}
}

// WithKV returns a logger that attaches the given pair to every entry.
func (l *ZapLogger) WithKV(key string, value any) Logger {
	return &ZapLogger{
		lg:   l.lg.With(key, value),
		name: l.name,
		rec:  l.rec,
	}
}

// WithSpanRecorder returns a logger that mirrors entries onto rec and tags
// them with the recorder's trace and span IDs.
func (l *ZapLogger) WithSpanRecorder(rec SpanEventRecorder) Logger {
	lg := l.lg
	if rec != nil {
		lg = lg.With("trace_id", rec.TraceID(), "span_id", rec.SpanID())
	}
	return &ZapLogger{
		lg:   lg,
		name: l.name,
		rec:  rec,
	}
}

func (l *ZapLogger) recordEvent(msg string, keysAndValues ...any) {
	if l.rec != nil {
		l.rec.RecordEvent(msg, keysAndValues...)
	}
}
