// Package logging sets up the structured logger: zap over stdout and a
// rotating log file, with phone numbers masked and secrets redacted.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"wa_ingest/identity"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	closer        io.Closer
}

// Options configure Setup. Empty File logs to Stdout only.
type Options struct {
	File    string
	Level   string // debug|info|warn|error
	Format  string // console|json
	Backups int    // rotated files kept next to File
	Stdout  io.Writer
}

// Setup builds a Logger teeing to stdout and the rotating file, and routes
// the standard library logger through it.
func Setup(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(stdout)}

	var closer io.Closer
	if opts.File != "" {
		rw, err := NewRotatingWriter(opts.File, maxLogSize, opts.Backups)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, rw)
		closer = rw
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	zl := zap.New(core)
	zap.RedirectStdLog(zl)

	return &Logger{SugaredLogger: zl.Sugar(), closer: closer}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.SugaredLogger.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...), closer: l.closer}
}

func sanitizeKVs(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.ToLower(strings.TrimSpace(fmt.Sprint(kv[i])))
		out = append(out, kv[i], sanitizeValue(key, kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	switch {
	case isRedactKey(key):
		return "[REDACTED]"
	case isPhoneKey(key):
		if s, ok := val.(string); ok {
			return MaskMobile(s)
		}
		return val
	case key == "text" || key == "message_text":
		if s, ok := val.(string); ok {
			return identity.Mask(s)
		}
		return val
	default:
		return val
	}
}

func isRedactKey(key string) bool {
	return strings.Contains(key, "password") ||
		strings.Contains(key, "hash") ||
		strings.Contains(key, "secret") ||
		strings.Contains(key, "token") ||
		strings.Contains(key, "access_key")
}

func isPhoneKey(key string) bool {
	return strings.Contains(key, "phone") ||
		strings.Contains(key, "mobile") ||
		strings.Contains(key, "sender_number") ||
		strings.Contains(key, "contact")
}

// MaskMobile keeps the first three characters and stars the rest.
func MaskMobile(s string) string {
	n := utf8.RuneCountInString(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	kept := 0
	for _, r := range s {
		if kept == 3 {
			break
		}
		b.WriteRune(r)
		kept++
	}
	b.WriteString(strings.Repeat("*", n-3))
	return b.String()
}
