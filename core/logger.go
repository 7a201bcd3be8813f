package core

// Logger is any leveled logger.
// Implementations may pick structured values out of args (e.g. the
// authenticated user) for error reporting.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
