package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestSanitizeKVs(t *testing.T) {
	r := redaction{enabled: true}
	out := r.sanitizeKVs([]interface{}{"api_key", "sk-123", "user_id", "42", "meal_id", "m1", "dangling"})

	assert.Equal(t, "[REDACTED]", out[1])
	assert.Contains(t, out[3], "hash:")
	assert.NotEqual(t, "42", out[3])
	assert.Equal(t, "m1", out[5])
	assert.Equal(t, "dangling", out[6])
}

func TestSanitizeKVsDisabled(t *testing.T) {
	r := redaction{enabled: false}
	out := r.sanitizeKVs([]interface{}{"api_key", "sk-123", "user_id", "42"})
	assert.Equal(t, []interface{}{"api_key", "sk-123", "user_id", "42"}, out)
}

func TestHashValueUsesSalt(t *testing.T) {
	plain := redaction{enabled: true}
	salted := redaction{enabled: true, salt: "pepper"}

	assert.Equal(t, plain.hashValue("demo-user"), plain.hashValue("demo-user"))
	assert.NotEqual(t, plain.hashValue("demo-user"), salted.hashValue("demo-user"))
	assert.Equal(t, "", salted.hashValue(""))
}

func TestWithKeepsRedaction(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}
	WithRedaction(true, "s")(l)

	l.With("component", "test").Info("saved", "user_id", "42", "token", "abc")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "test", fields["component"])
		assert.Equal(t, "[REDACTED]", fields["token"])
		assert.NotEqual(t, "42", fields["user_id"])
	}
}
