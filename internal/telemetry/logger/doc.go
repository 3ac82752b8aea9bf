// Package logger provides structured logging for respkv.
//
// It wraps log/slog with a small Logger interface, a process-wide level that
// can be changed at runtime (SetLevel, driven by config reloads), and a
// ReplaceAttr hook that redacts secrets such as requirepass and the snapshot
// encryption key.
//
// Connection scoped loggers carry a conn_id attribute; see WithConnID and L.
package logger
