// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON
// (or text) logging with configurable log levels and an optional log file, which
// the live terminal UI needs because it owns stdout.
package logger
