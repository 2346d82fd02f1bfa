package logging

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/zap/zapcore"

	"github.com/cloudx-io/dynauction/config"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logger, err := New(config.LogConfig{Level: tc.level, Encoding: "json"})
			assert.NoError(t, err)
			check.True(t, logger.Core().Enabled(tc.want))
			if tc.want > zapcore.DebugLevel {
				check.False(t, logger.Core().Enabled(tc.want-1))
			}
		})
	}
}

func TestNewConsoleEncoding(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "info", Encoding: "console", Sampling: true})
	assert.NoError(t, err)
	check.NotNil(t, logger)
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	_, err := New(config.LogConfig{Level: "info", Encoding: "xml"})
	check.Error(t, err)
}
