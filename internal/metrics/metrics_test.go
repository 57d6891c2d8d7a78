package metrics

import (
	"battery-status-bot/internal/database"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "metrics.db")))
	t.Cleanup(func() { _ = database.CloseDB() })
}

func TestGetMetricValue(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter"})
	counter.Add(3)
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge"})
	gauge.Set(42.5)

	assert.Equal(t, 3.0, GetMetricValue(counter))
	assert.Equal(t, 42.5, GetMetricValue(gauge))
}

func TestSavePersistsCounters(t *testing.T) {
	require := require.New(t)
	initTestDB(t)

	CommandsProcessed.Add(2)
	AlertFired("st-1", 50)
	SeenChat(500)
	Save()

	commands, err := database.GetMetric("commands_processed")
	require.NoError(err)
	require.Equal(GetMetricValue(CommandsProcessed), commands)

	alerts, err := database.GetMetricsWithLabels("alerts_fired")
	require.NoError(err)
	require.GreaterOrEqual(alerts["st-1"]["50"], 1.0)

	chats, err := database.GetMetricsWithLabels("chats")
	require.NoError(err)
	require.Equal(1.0, chats["500"]["seen"])
}

func TestLoadRestoresCounters(t *testing.T) {
	require := require.New(t)
	initTestDB(t)

	require.NoError(database.SaveMetric("requests_rejected", 7))
	require.NoError(database.SaveMetricWithLabels("alerts_fired", "st-9", "20", 3))
	require.NoError(database.SaveMetricWithLabels("chats", "9001", "seen", 1))

	before := GetMetricValue(RequestsRejected)
	Load()

	require.Equal(before+7, GetMetricValue(RequestsRejected))
	require.Equal(3.0, GetMetricValue(AlertsSent.WithLabelValues("st-9", "20")))

	chatsMu.Lock()
	_, seen := chatsSet[9001]
	chatsMu.Unlock()
	require.True(seen)
}

func TestFormatThreshold(t *testing.T) {
	assert.Equal(t, "50", formatThreshold(50))
	assert.Equal(t, "12.5", formatThreshold(12.5))
}
