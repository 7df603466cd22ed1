package logger

import (
	"io"
	"os"
	"strings"

	"loadhub-core-svc/src/internal/config"

	"github.com/sirupsen/logrus"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"new_password":  {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"reset_token":   {},
	"authorization": {},
	"secret":        {},
}

// Init configures the standard logrus logger from the logs section.
func Init(cfg *config.Configuration) {
	level, err := logrus.ParseLevel(cfg.Logs.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Logs.EnableJSONOutput {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logrus.SetOutput(output(cfg.Logs.Path))
	logrus.AddHook(&RedactHook{})

	logrus.WithFields(logrus.Fields{
		"level": level.String(),
		"json":  cfg.Logs.EnableJSONOutput,
		"path":  cfg.Logs.Path,
	}).Info("Logger initialized")
}

func output(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.WithError(err).Warn("Failed to open log file, falling back to stdout")
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, file)
}

// RedactHook masks credential-bearing fields before an entry is formatted.
type RedactHook struct{}

func (h *RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *RedactHook) Fire(entry *logrus.Entry) error {
	for key := range entry.Data {
		if IsSensitive(key) {
			entry.Data[key] = redacted
		}
	}
	return nil
}

// IsSensitive reports whether a log field name may carry a secret.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	if _, ok := sensitiveKeys[normalized]; ok {
		return true
	}
	// camelCase variants such as refreshToken
	normalized = strings.ReplaceAll(normalized, "_", "")
	for k := range sensitiveKeys {
		if strings.ReplaceAll(k, "_", "") == normalized {
			return true
		}
	}
	return false
}
