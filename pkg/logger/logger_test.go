package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &Logger{Logger: zap.New(core)}

	log.WithRequest("corr-1", "u1").Info("with user")
	log.WithRequest("corr-2", "").Info("anonymous")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"correlation_id": "corr-1", "user_id": "u1"}, entries[0].ContextMap())
	assert.Equal(t, map[string]interface{}{"correlation_id": "corr-2"}, entries[1].ContextMap())
}
