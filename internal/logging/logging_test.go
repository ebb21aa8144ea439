package logging

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLogrusAdapter(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"DebugJSON", "debug", "json"},
		{"InfoText", "info", "text"},
		{"InvalidLevelFallsBack", "nope", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogrusAdapter(tt.level, tt.format)
			assert.NotNil(t, logger)

			// Must not panic when logging with fields.
			logger.Info("hello", F(FieldBackend, "mock"))
			logger.WithField("k", "v").Debug("chained")
		})
	}
}

func TestNewLogrusAdapterFromNilLogger(t *testing.T) {
	logger := NewLogrusAdapterFromLogger(nil)
	assert.NotNil(t, logger)
}

func TestNewLogrusAdapterFromLogger(t *testing.T) {
	underlying := logrus.New()
	underlying.SetLevel(logrus.DebugLevel)

	logger := NewLogrusAdapterFromLogger(underlying)
	assert.NotNil(t, logger)
}

func TestMockLoggerCapture(t *testing.T) {
	mock := &MockLogger{}

	mock.Info("queue drained", F(FieldCount, 3))
	mock.Warn("remote scan failed")

	assert.Len(t, mock.Entries, 2)
	assert.True(t, mock.HasEntry("INFO", "queue drained"))
	assert.True(t, mock.HasEntry("WARN", "remote scan failed"))
	assert.False(t, mock.HasEntry("ERROR", "queue drained"))
	assert.Equal(t, FieldCount, mock.Entries[0].Fields[0].Key)
}

func TestMockLoggerWithError(t *testing.T) {
	mock := &MockLogger{}
	cause := errors.New("boom")

	chained := mock.WithError(cause).(*MockLogger)
	chained.Error("upload failed")

	entries := chained.EntriesByLevel("ERROR")
	assert.Len(t, entries, 1)
	assert.Equal(t, cause, entries[0].Error)
}
