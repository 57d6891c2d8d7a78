package metrics

import (
	"battery-status-bot/internal/database"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "battery"
	subsystem = "telegram_bot"
)

var (
	registerOnce sync.Once

	chatsMu  sync.Mutex
	chatsSet = make(map[int64]struct{})

	CommandsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "commands_processed",
		Help:      "The total number of processed commands",
	})
	MessagesHandled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "messages_handled",
		Help:      "The total number of handled messages",
	})
	RequestsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_rejected",
		Help:      "The total number of status requests rejected by the hourly limit",
	})
	ChatsCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "chats_count",
		Help:      "The current number of unique chats the bot has answered",
	})
	FetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerter",
		Name:      "fetch_failures",
		Help:      "The total number of SoC fetches that returned no usable value",
	}, []string{"device"})
	AlertsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerter",
		Name:      "alerts_fired",
		Help:      "The total number of threshold alerts fired",
	}, []string{"device", "threshold"})
	NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerter",
		Name:      "notify_failures",
		Help:      "The total number of alerts that could not be delivered",
	})
	BatterySoC = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "alerter",
		Name:      "soc_percent",
		Help:      "The last observed battery state of charge",
	}, []string{"device"})
)

// Register adds all collectors to the default registry once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CommandsProcessed,
			MessagesHandled,
			RequestsRejected,
			ChatsCount,
			FetchFailures,
			AlertsSent,
			NotifyFailures,
			BatterySoC,
		)
	})
}

func FetchFailed(device string) {
	FetchFailures.WithLabelValues(device).Inc()
}

func ObserveSoC(device string, soc float64) {
	BatterySoC.WithLabelValues(device).Set(soc)
}

func AlertFired(device string, threshold float64) {
	AlertsSent.WithLabelValues(device, formatThreshold(threshold)).Inc()
}

func NotifyFailed() {
	NotifyFailures.Inc()
}

// SeenChat tracks unique chats for the chats_count gauge.
func SeenChat(chatID int64) {
	chatsMu.Lock()
	defer chatsMu.Unlock()

	if _, exists := chatsSet[chatID]; !exists {
		chatsSet[chatID] = struct{}{}
		ChatsCount.Set(float64(len(chatsSet)))
	}
}

// Load restores persisted counters so totals survive restarts.
func Load() {
	commandsProcessed, _ := database.GetMetric("commands_processed")
	messagesHandled, _ := database.GetMetric("messages_handled")
	requestsRejected, _ := database.GetMetric("requests_rejected")
	notifyFailures, _ := database.GetMetric("notify_failures")

	CommandsProcessed.Add(commandsProcessed)
	MessagesHandled.Add(messagesHandled)
	RequestsRejected.Add(requestsRejected)
	NotifyFailures.Add(notifyFailures)

	loadLabeledMetrics("chats", func(chatIDStr, _ string, _ float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Errorf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		SeenChat(chatID)
	})

	loadLabeledMetrics("alerts_fired", func(device, threshold string, value float64) {
		AlertsSent.WithLabelValues(device, threshold).Add(value)
	})

	log.Info("Metrics loaded from database.")
}

func loadLabeledMetrics(metricName string, callback func(labelKey, labelValue string, value float64)) {
	metricsWithLabels, err := database.GetMetricsWithLabels(metricName)
	if err != nil {
		log.Errorf("Failed to load %s: %v", metricName, err)
		return
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

// Save writes the counters to the database.
func Save() {
	save := func(name string, collector prometheus.Collector) {
		if err := database.SaveMetric(name, GetMetricValue(collector)); err != nil {
			log.Error(err)
		}
	}
	save("commands_processed", CommandsProcessed)
	save("messages_handled", MessagesHandled)
	save("requests_rejected", RequestsRejected)
	save("notify_failures", NotifyFailures)

	chatsMu.Lock()
	for chatID := range chatsSet {
		if err := database.SaveMetricWithLabels("chats", strconv.FormatInt(chatID, 10), "seen", 1); err != nil {
			log.Error(err)
		}
	}
	chatsMu.Unlock()

	metricChan := make(chan prometheus.Metric)
	go func() {
		AlertsSent.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read alerts_fired metric: %v", err)
			continue
		}
		var device, threshold string
		for _, label := range metricProto.Label {
			switch label.GetName() {
			case "device":
				device = label.GetValue()
			case "threshold":
				threshold = label.GetValue()
			}
		}
		if err := database.SaveMetricWithLabels("alerts_fired", device, threshold, metricProto.Counter.GetValue()); err != nil {
			log.Error(err)
		}
	}

	log.Info("Metrics saved to database.")
}

// GetMetricValue reads the current value of a single-series counter or gauge.
func GetMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	m, ok := <-metricChan
	if !ok {
		return 0
	}

	metricProto := &dto.Metric{}
	if err := m.Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}

func formatThreshold(threshold float64) string {
	return strconv.FormatFloat(threshold, 'f', -1, 64)
}
