package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSensitive(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	l.Info("config loaded",
		"requirepass", "hunter2",
		"encryption_key", "k3y",
		"dir", "/var/lib/respkv",
		"password", "")

	entry := decodeEntry(t, buf)
	assert.Equal(t, redactedValue, entry["requirepass"])
	assert.Equal(t, redactedValue, entry["encryption_key"])
	assert.Equal(t, "/var/lib/respkv", entry["dir"])
	assert.Equal(t, "", entry["password"], "empty values are left alone")
}

func TestRedactSensitive_Group(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	l.Slog().WithGroup("security").Info("reloaded", "requirepass", "hunter2")
	l.Info("reloaded", slog.Group("snapshot", "encryption_key", "k3y"))

	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotContains(t, buf.String(), "k3y")
}

func TestRedactCommand(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"auth password", []string{"AUTH", "pw"}, []string{"AUTH", redactedValue}},
		{"auth user password", []string{"auth", "default", "pw"}, []string{"auth", "default", redactedValue}},
		{"config set", []string{"CONFIG", "SET", "requirepass", "pw", "dir", "/tmp"},
			[]string{"CONFIG", "SET", "requirepass", redactedValue, "dir", "/tmp"}},
		{"config get", []string{"CONFIG", "GET", "requirepass"}, []string{"CONFIG", "GET", "requirepass"}},
		{"plain", []string{"SET", "k", "v"}, []string{"SET", "k", "v"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := make([][]byte, len(tt.in))
			for i, s := range tt.in {
				args[i] = []byte(s)
			}
			assert.Equal(t, tt.want, RedactCommand(args))
		})
	}
}
