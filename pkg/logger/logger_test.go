package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWriterJSON(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	var buf bytes.Buffer
	l, err := InitWriter(&buf, "info", "json")
	require.NoError(t, err)

	L().Info("diagram saved", zap.String("project_id", "p1"))
	l.Debug("dropped at info level")
	Sync()

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "diagram saved", line["message"])
	require.Equal(t, "info", line["level"])
	require.Equal(t, "p1", line["project_id"])
	require.Contains(t, line["caller"], "logger_test.go")
}

func TestInitRejectsUnknownSettings(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	_, err := Init("loud", "json")
	require.Error(t, err)

	_, err = Init("info", "xml")
	require.Error(t, err)
}

func TestLPanicsWhenUninitialized(t *testing.T) {
	restore := Replace(nil)
	defer restore()
	require.Panics(t, func() { L() })
}
