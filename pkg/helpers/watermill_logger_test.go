package helpers

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatermillAdapterDemotesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.TraceLevel)
	a := NewWatermill(logger).With(watermill.LogFields{"topic": "chat"})

	a.Info("subscribed", watermill.LogFields{"n": 1})
	a.Error("failed", errors.New("boom"), nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.Equal(t, "debug", first["level"])
	require.Equal(t, "chat", first["topic"])
	require.Equal(t, "watermill", first["component"])
	require.Equal(t, float64(1), first["n"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.Equal(t, "error", second["level"])
	require.Equal(t, "boom", second["error"])
}
