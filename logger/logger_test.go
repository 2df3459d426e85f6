package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("debug", false).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New(" WARN ", true).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("loud", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("", false).GetLevel())
}

func TestNewWithWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("company_id", "acme").Msg("test message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "acme", entry["company_id"])
	assert.Contains(t, entry, "time")
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	FromContext(ctx).Info().Msg("test")
	assert.NotZero(t, buf.Len())
}

func TestFromContext_Missing(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.Equal(t, zerolog.Disabled, log.GetLevel())

	// chaining on a missing logger is a no-op
	FromContext(context.Background()).Warn().Str("k", "v").Msg("dropped")
}

func TestFromContext_ChainedLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	FromContext(ctx).Debug().Msg("debug")
	FromContext(ctx).Warn().Msg("warn")
	FromContext(ctx).Error().Msg("error")

	out := buf.String()
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"level":"error"`)
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"user_id": "123",
		"action":  "test",
	})
	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), `"user_id":"123"`)
	assert.Contains(t, buf.String(), `"action":"test"`)
}
