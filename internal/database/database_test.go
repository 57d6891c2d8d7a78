package database

import (
	"battery-status-bot/internal/types"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "bot.db")))
	t.Cleanup(func() { _ = CloseDB() })
}

func TestReadingsRoundTripAndPrune(t *testing.T) {
	initTestDB(t)
	require := require.New(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	require.NoError(InsertReading(ctx, "st-1", 70, base))
	require.NoError(InsertReading(ctx, "st-1", 65.5, base.Add(10*time.Minute)))
	require.NoError(InsertReading(ctx, "st-2", 30, base.Add(10*time.Minute)))

	points, err := GetReadingsSince(ctx, "st-1", base)
	require.NoError(err)
	require.Len(points, 2)
	require.Equal(70.0, points[0].SoC)
	require.Equal(65.5, points[1].SoC)
	require.True(points[1].At.Equal(base.Add(10 * time.Minute)))

	removed, err := PruneReadings(ctx, base.Add(time.Minute))
	require.NoError(err)
	require.EqualValues(1, removed)

	points, err = GetReadingsSince(ctx, "st-1", time.Time{})
	require.NoError(err)
	require.Len(points, 1)
}

func TestAlertLogNewestFirst(t *testing.T) {
	initTestDB(t)
	require := require.New(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	rec := Recorder{}
	require.NoError(rec.RecordAlert(ctx, types.AlertEvent{
		DeviceRef: "st-1", DeviceName: "Home", Threshold: 50, SoC: 45, Severity: types.SeverityWarning, At: base,
	}))
	require.NoError(rec.RecordAlert(ctx, types.AlertEvent{
		DeviceRef: "st-1", DeviceName: "Home", Threshold: 20, SoC: 18, Severity: types.SeverityCritical, At: base.Add(time.Hour),
	}))

	alerts, err := GetRecentAlerts(ctx, 10)
	require.NoError(err)
	require.Len(alerts, 2)
	require.Equal(20.0, alerts[0].Threshold)
	require.Equal("critical", alerts[0].Severity)
	require.Equal("Home", alerts[1].DeviceName)

	alerts, err = GetRecentAlerts(ctx, 1)
	require.NoError(err)
	require.Len(alerts, 1)
}

func TestMetricsLabeledAndUnlabeled(t *testing.T) {
	initTestDB(t)
	require := require.New(t)

	v, err := GetMetric("commands_processed")
	require.NoError(err)
	require.Zero(v)

	require.NoError(SaveMetric("commands_processed", 3))
	require.NoError(SaveMetric("commands_processed", 5))
	require.NoError(SaveMetricWithLabels("alerts_sent", "st-1", "50", 2))

	v, err = GetMetric("commands_processed")
	require.NoError(err)
	require.Equal(5.0, v)

	labeled, err := GetMetricsWithLabels("alerts_sent")
	require.NoError(err)
	require.Equal(2.0, labeled["st-1"]["50"])

	unlabeled, err := GetMetricsWithLabels("commands_processed")
	require.NoError(err)
	require.Empty(unlabeled)
}
