package main

import (
	"battery-status-bot/config"
	"battery-status-bot/internal/alert"
	"battery-status-bot/internal/database"
	"battery-status-bot/internal/deye"
	"battery-status-bot/internal/metrics"
	"battery-status-bot/internal/telegram"
	"battery-status-bot/internal/throttle"
	"battery-status-bot/lib/translation"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	maintenanceInterval = 5 * time.Minute
	readingsRetention   = 7 * 24 * time.Hour
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	translation.Configure("locales", strings.ToLower(config.GetString("lang")))

	devices, err := config.Devices()
	if err != nil {
		log.Fatalf("Failed to read devices: %v", err)
	}
	maxClicks := config.GetInt("max_clicks_per_hour")
	interval := config.GetSeconds("alert_interval")
	if err := config.Validate(devices, maxClicks, interval); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := database.InitDB(config.GetString("db_path")); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	metrics.Register()
	metrics.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := deye.NewClient(deye.Config{
		BaseURL:   config.GetString("deye_base_url"),
		AppID:     config.GetString("deye_app_id"),
		AppSecret: config.GetString("deye_app_secret"),
		Email:     config.GetString("deye_email"),
		Password:  config.GetString("deye_password"),
		Timeout:   config.GetSeconds("fetch_timeout"),
	})
	limiter := throttle.New(maxClicks, time.Hour)

	alertChatID := config.GetString("alert_chat_id")
	if alertChatID == "" {
		log.Warn("ALERT_CHAT_ID is not set, threshold alerts will only be logged")
	}

	services := telegram.Services{
		Throttle:     limiter,
		Fetcher:      client,
		Devices:      devices,
		Readings:     database.GetReadingsSince,
		RecentAlerts: database.GetRecentAlerts,
	}
	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
		AlertChatID:    alertChatID,
		ButtonText:     config.GetString("button_text"),
	}, services)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	alerter, err := alert.NewAlerter(devices, client, bot,
		alert.WithInterval(interval),
		alert.WithFetchTimeout(config.GetSeconds("fetch_timeout")),
		alert.WithRecorder(database.Recorder{}),
	)
	if err != nil {
		log.Fatalf("Failed to create alerter: %v", err)
	}
	bot.Services.Alerter = alerter

	go alerter.Run(ctx)
	go runMaintenance(ctx, limiter)

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}
	go handleUpdates(ctx, bot, updates)

	server := launchMetricsAndHealthServer(config.GetInt("metrics_port"))

	log.Infof("🔋 Bot started, watching %d device(s)", len(devices))
	<-ctx.Done()

	log.Info("Shutting down...")
	bot.StopUpdates()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Metrics server forced to shutdown: %v", err)
	}
	metrics.Save()
	log.Info("Metrics saved, bye")
}

func setupLogging() {
	level, err := log.ParseLevel(config.GetString("log_level"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Debug("Starting telegram bot...")
}

func handleUpdates(ctx context.Context, bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go handleUpdate(ctx, bot, update)
	}
}

func handleUpdate(ctx context.Context, bot *telegram.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, debug.Stack())
		}
	}()

	bot.HandleUpdate(ctx, update)
}

func runMaintenance(ctx context.Context, limiter *throttle.Throttle) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := limiter.Sweep(now); evicted > 0 {
				log.Debugf("🧹 Evicted %d idle users from the request limiter", evicted)
			}
			if pruned, err := database.PruneReadings(ctx, now.Add(-readingsRetention)); err != nil {
				log.Errorf("Failed to prune readings: %v", err)
			} else if pruned > 0 {
				log.Debugf("🧹 Pruned %d old readings", pruned)
			}
			metrics.Save()
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthCheckHandler)

	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		log.Infof("Launching metrics and health endpoint on :%d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()
	return server
}
