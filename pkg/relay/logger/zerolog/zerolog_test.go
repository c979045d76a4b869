package zerolog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/payrelay/payrelay/pkg/relay"
)

func TestLogger_NewLogger(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
}

func TestLogger_AllLevels(t *testing.T) {
	tests := []struct {
		name string
		log  func(l *Logger)
	}{
		{"debug", func(l *Logger) { l.Debug("test debug message") }},
		{"info", func(l *Logger) { l.Info("test info message") }},
		{"warn", func(l *Logger) { l.Warn("test warn message") }},
		{"error", func(l *Logger) { l.Error("test error message") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := bytes.Buffer{}
			logger := NewLogger(zerolog.New(&output))

			tt.log(logger)

			if output.Len() == 0 {
				t.Errorf("Expected %s log to be written", tt.name)
			}
			if !strings.Contains(output.String(), tt.name) {
				t.Errorf("Expected level %q in output: %s", tt.name, output.String())
			}
		})
	}
}

func TestLogger_LogLevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output).Level(zerolog.WarnLevel))

	// Debug and Info should be filtered out
	logger.Debug("debug message")
	logger.Info("info message")

	if output.Len() != 0 {
		t.Error("Expected debug and info to be filtered out")
	}

	// Warn and Error should be logged
	logger.Warn("warn message")
	logger.Error("error message")

	if output.Len() == 0 {
		t.Error("Expected warn and error to be logged")
	}
}

func TestLogger_Fields(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Info("payment relayed",
		relay.Field{Key: "eventType", Value: "checkout.session.completed"},
		relay.Field{Key: "eventId", Value: "evt_1"},
		relay.Field{Key: "amount", Value: 49.99},
	)

	logged := output.String()
	for _, want := range []string{"eventType", "checkout.session.completed", "evt_1", "49.99"} {
		if !strings.Contains(logged, want) {
			t.Errorf("Expected %q in output: %s", want, logged)
		}
	}
}
