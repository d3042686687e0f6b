package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPianificatore_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 10, 1, 12, 30, 45, 123_456_789, time.FixedZone("CEST", 2*60*60))
	require.Equal(t, "2025-10-01T10:30:45.123Z", formatRFC3339Millis(ts))
}

func TestPianificatore_Logger_New(t *testing.T) {
	t.Parallel()

	t.Run("drops debug lines unless verbose", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := New(&buf, false)
		log.Debug("hidden")
		log.Info("visible", "component", "duck")
		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "visible")
		require.Contains(t, buf.String(), "component=duck")
	})

	t.Run("omits empty string attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := New(&buf, true)
		log.Debug("opened", "homeDir", "", "location", ":memory:")
		require.NotContains(t, buf.String(), "homeDir")
		require.Contains(t, buf.String(), "location=:memory:")
	})
}
