package telemetry_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestObserver_Logs(t *testing.T) {
	var buf bytes.Buffer
	obs, err := telemetry.NewObserverWithMeter(zerolog.New(&buf), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	obs.PacketOpened(42, 7)
	obs.PacketClosed(42, 7, aggregator.ReasonSweep)
	obs.Failure(aggregator.Failure{Op: aggregator.OpNotify, UserID: 42, PacketID: 7, Err: errors.New("gateway down")})

	lines := logLines(t, &buf)
	require.Len(t, lines, 3)

	require.Equal(t, "packet opened", lines[0]["message"])
	require.Equal(t, float64(42), lines[0]["user_id"])
	require.Equal(t, float64(7), lines[0]["packet_id"])

	require.Equal(t, "sweep", lines[1]["reason"])

	require.Equal(t, "error", lines[2]["level"])
	require.Equal(t, "notify", lines[2]["op"])
	require.Equal(t, "gateway down", lines[2]["error"])
}

func TestNewObserver_GlobalMeter(t *testing.T) {
	obs, err := telemetry.NewObserver(zerolog.Nop())
	require.NoError(t, err)
	obs.PacketOpened(1, 1)
}
