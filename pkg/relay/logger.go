package relay

// Field is a key/value pair attached to a log message.
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with fields.
	Debug(msg string, fields ...Field)

	// Info logs an info message with fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning message with fields.
	Warn(msg string, fields ...Field)

	// Error logs an error message with fields.
	Error(msg string, fields ...Field)
}

// NopLogger is a Logger that discards everything.
type NopLogger struct{}

func (NopLogger) Debug(_ string, _ ...Field) {}
func (NopLogger) Info(_ string, _ ...Field)  {}
func (NopLogger) Warn(_ string, _ ...Field)  {}
func (NopLogger) Error(_ string, _ ...Field) {}
