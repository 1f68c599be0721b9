package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContextAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, slog.LevelDebug)

	ctx := WithSession(context.Background(), "sess-1")
	ctx = WithComponent(ctx, "store")
	ctx = WithAgent(ctx, "claude-code")

	FromContext(ctx).Info("checkpoint created", slog.String("name", "auto_1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "sess-1", record["session_id"])
	require.Equal(t, "store", record["component"])
	require.Equal(t, "claude-code", record["agent"])
	require.Equal(t, "auto_1", record["name"])
}

func TestLevelFromString(t *testing.T) {
	require.Equal(t, slog.LevelDebug, LevelFromString("debug"))
	require.Equal(t, slog.LevelWarn, LevelFromString("warn"))
	require.Equal(t, slog.LevelError, LevelFromString("error"))
	require.Equal(t, slog.LevelInfo, LevelFromString("nonsense"))
}
