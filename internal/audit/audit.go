package audit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

const (
	StatusOK         = "ok"
	StatusFailed     = "failed"
	StatusSuppressed = "suppressed"
)

// Logger writes one JSON line per executed moderation action.
type Logger struct {
	logger *zap.Logger
}

// New builds a production JSON logger. A disabled trail is backed by a no-op core.
func New(enabled bool) (*Logger, error) {
	if !enabled {
		return NewWithLogger(zap.NewNop()), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewWithLogger(logger.Named("audit")), nil
}

func NewWithLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// Action records the outcome of a single action.
func (l *Logger) Action(chatID int64, action moderation.Action, status string, err error) {
	if l == nil || action == nil {
		return
	}
	fields := []zap.Field{
		zap.Int64("chat_id", chatID),
		zap.String("kind", string(action.Kind())),
		zap.String("rule", action.Rule()),
		zap.String("status", status),
	}
	if userID := targetUser(action); userID != 0 {
		fields = append(fields, zap.Int64("user_id", userID))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		l.logger.Warn("action", fields...)
		return
	}
	l.logger.Info("action", fields...)
}

// Report records a summary notification about triggered rules.
func (l *Logger) Report(chatID, destination int64, rules []string, err error) {
	if l == nil {
		return
	}
	fields := []zap.Field{
		zap.Int64("chat_id", chatID),
		zap.Int64("destination_chat_id", destination),
		zap.Strings("rules", rules),
	}
	if err != nil {
		l.logger.Warn("report", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Info("report", fields...)
}

func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.logger.Sync()
}

func targetUser(action moderation.Action) int64 {
	switch a := action.(type) {
	case moderation.Mute:
		return a.UserID
	case moderation.Ban:
		return a.UserID
	case moderation.Restrict:
		return a.UserID
	case moderation.LiftRestrictions:
		return a.UserID
	case moderation.Warn:
		return a.UserID
	}
	return 0
}
