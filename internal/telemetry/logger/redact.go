package logger

import (
	"log/slog"
	"strings"
)

// Attribute keys whose string values are always redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"requirepass",
	"secret",
	"encryption_key",
	"credential",
	"auth",
}

// Config parameters whose CONFIG SET value is redacted in command logs.
var sensitiveParams = map[string]bool{
	"requirepass":    true,
	"encryption_key": true,
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}

	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// RedactCommand renders a request for logging. Passwords given to AUTH and
// sensitive CONFIG SET values are replaced.
func RedactCommand(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	if len(out) == 0 {
		return out
	}

	switch strings.ToUpper(out[0]) {
	case "AUTH":
		for i := 1; i < len(out); i++ {
			// AUTH user password: keep the user name.
			if len(out) == 3 && i == 1 {
				continue
			}
			out[i] = redactedValue
		}

	case "CONFIG":
		if len(out) < 2 || !strings.EqualFold(out[1], "SET") {
			break
		}
		for i := 2; i+1 < len(out); i += 2 {
			if sensitiveParams[strings.ToLower(out[i])] {
				out[i+1] = redactedValue
			}
		}
	}
	return out
}
