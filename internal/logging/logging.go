// Package logging provides the process-wide structured logger used by every
// voice-core package. All packages log through the package-level helpers
// here rather than holding their own *zap.Logger.
package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Logger is the structured logging interface used across the module. It lets
// tests swap in a recording or no-op implementation via SetLogger.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error
}

type noopLogger struct{}

func (noopLogger) Infow(string, ...interface{})  {}
func (noopLogger) Debugw(string, ...interface{}) {}
func (noopLogger) Warnw(string, ...interface{})  {}
func (noopLogger) Errorw(string, ...interface{}) {}
func (noopLogger) Sync() error                   { return nil }

// current is the active Logger. It starts as a no-op so calls are safe
// before Init runs.
var current Logger = noopLogger{}

// Init initializes the global sugared logger from LOG_LEVEL and redirects the
// standard library logger into zap. Safe to call more than once.
func Init() *zap.SugaredLogger {
	once.Do(func() {
		level := strings.ToLower(os.Getenv("LOG_LEVEL"))

		cfg := zap.Config{
			Encoding:         "json",
			EncoderConfig:    zap.NewProductionEncoderConfig(),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		}
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		lvl := zap.InfoLevel
		switch level {
		case "debug":
			lvl = zap.DebugLevel
		case "warn":
			lvl = zap.WarnLevel
		case "error":
			lvl = zap.ErrorLevel
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)

		logger, _ := cfg.Build(zap.AddCaller())
		_ = zap.RedirectStdLog(logger)
		sugar = logger.Sugar()
		current = sugar
	})
	return sugar
}

// Sugar returns the initialized sugared logger, or nil if Init hasn't run.
func Sugar() *zap.SugaredLogger { return sugar }

// SetLogger replaces the package-level logger. Passing nil restores the
// zap-backed logger (or the no-op if Init hasn't run). Used by tests.
func SetLogger(l Logger) {
	if l == nil {
		if sugar != nil {
			current = sugar
		} else {
			current = noopLogger{}
		}
		return
	}
	current = l
}

func Infow(msg string, kv ...interface{})  { current.Infow(msg, kv...) }
func Debugw(msg string, kv ...interface{}) { current.Debugw(msg, kv...) }
func Warnw(msg string, kv ...interface{})  { current.Warnw(msg, kv...) }
func Errorw(msg string, kv ...interface{}) { current.Errorw(msg, kv...) }
func Sync() error                          { return current.Sync() }

type ctxKeyType struct{}

// WithFields attaches key/value pairs to ctx for later merging by *Ctx calls.
func WithFields(ctx context.Context, kv ...interface{}) context.Context {
	if len(kv) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(ctxKeyType{}).([]interface{})
	merged := make([]interface{}, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, ctxKeyType{}, merged)
}

// InfowCtx logs at info level, prefixing any fields attached via WithFields.
func InfowCtx(ctx context.Context, msg string, kv ...interface{}) {
	fields, _ := ctx.Value(ctxKeyType{}).([]interface{})
	if len(fields) == 0 {
		Infow(msg, kv...)
		return
	}
	merged := make([]interface{}, 0, len(fields)+len(kv))
	merged = append(merged, fields...)
	merged = append(merged, kv...)
	Infow(msg, merged...)
}

// UserFields, GuildFields and ChannelFields return key/value pairs for the
// domain's recurring Discord identifiers, for splicing into *w calls, e.g.
//
//	logging.Infow("joined voice", logging.GuildFields(guildID, guildName)...)
func UserFields(userID, userName string) []interface{} {
	if userName == "" {
		return []interface{}{"user.id", userID}
	}
	return []interface{}{"user.id", userID, "user.name", userName}
}

func GuildFields(guildID, guildName string) []interface{} {
	if guildName == "" {
		return []interface{}{"guild.id", guildID}
	}
	return []interface{}{"guild.id", guildID, "guild.name", guildName}
}

func ChannelFields(channelID, channelName string) []interface{} {
	if channelName == "" {
		return []interface{}{"channel.id", channelID}
	}
	return []interface{}{"channel.id", channelID, "channel.name", channelName}
}

// SSRCFields returns structured fields for logging per-speaker buffer state.
func SSRCFields(ssrc uint32, samples int, durationMs int) []interface{} {
	return []interface{}{"ssrc", ssrc, "samples", samples, "duration_ms", durationMs}
}

func init() {
	Init()
}
