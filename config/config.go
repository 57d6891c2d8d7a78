package config

import (
	"battery-status-bot/internal/types"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DefaultThresholds = "50,20"
	DefaultHysteresis = 5.0
	DefaultButtonText = "🔋 Battery status"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		if err := godotenv.Load(); err == nil {
			log.Debug("Loaded environment from .env")
		}

		viper.AutomaticEnv()

		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("deye_app_id", "DEYE_APP_ID")
		viper.BindEnv("deye_app_secret", "DEYE_APP_SECRET")
		viper.BindEnv("deye_email", "DEYE_EMAIL")
		viper.BindEnv("deye_password", "DEYE_PASSWORD")
		viper.BindEnv("deye_base_url", "DEYE_BASE_URL")
		viper.BindEnv("deye_station_id", "DEYE_STATION_ID")
		viper.BindEnv("station_name", "STATION_NAME")
		viper.BindEnv("alert_thresholds", "ALERT_THRESHOLDS")
		viper.BindEnv("hysteresis_margin", "HYSTERESIS_MARGIN")
		viper.BindEnv("alert_chat_id", "ALERT_CHAT_ID")
		viper.BindEnv("alert_interval", "ALERT_INTERVAL")
		viper.BindEnv("fetch_timeout", "FETCH_TIMEOUT")
		viper.BindEnv("max_clicks_per_hour", "MAX_CLICKS_PER_HOUR")
		viper.BindEnv("button_text", "BUTTON_TEXT")
		viper.BindEnv("metrics_port", "METRICS_PORT", "PORT")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("log_level", "LOG_LEVEL")
		viper.BindEnv("lang", "LANG")

		viper.SetDefault("deye_base_url", "https://eu1-developer.deyecloud.com")
		viper.SetDefault("alert_thresholds", DefaultThresholds)
		viper.SetDefault("hysteresis_margin", DefaultHysteresis)
		viper.SetDefault("alert_interval", 600)
		viper.SetDefault("fetch_timeout", 10)
		viper.SetDefault("max_clicks_per_hour", 4)
		viper.SetDefault("button_text", DefaultButtonText)
		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("debug", false)
		viper.SetDefault("log_level", "info")
		viper.SetDefault("lang", "en")

		if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
			if _, err := os.Stat(cfgFile); err == nil {
				viper.SetConfigFile(cfgFile)
				if err := viper.ReadInConfig(); err != nil {
					log.Errorf("Error reading config file %s: %v", cfgFile, err)
				}
			}
		}
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetFloat(key string) float64 {
	InitConfig()
	return viper.GetFloat64(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

// GetSeconds reads an integer number of seconds.
func GetSeconds(key string) time.Duration {
	return time.Duration(GetInt(key)) * time.Second
}

// Devices returns the monitored devices from the config file, or a single device built
// from DEYE_STATION_ID when the file has none.
func Devices() ([]types.MonitoredDevice, error) {
	InitConfig()

	var fromFile []types.MonitoredDevice
	if err := viper.UnmarshalKey("devices", &fromFile); err != nil {
		return nil, errors.Wrap(err, "could not parse devices")
	}

	return BuildDevices(fromFile,
		viper.GetString("deye_station_id"),
		viper.GetString("station_name"),
		viper.GetString("alert_thresholds"),
		viper.GetFloat64("hysteresis_margin"))
}

// BuildDevices fills thresholds and hysteresis of file devices from the global values.
// Without file devices a single one is built from stationID.
func BuildDevices(fromFile []types.MonitoredDevice, stationID, name, thresholds string, hysteresis float64) ([]types.MonitoredDevice, error) {
	defaults, err := ParseThresholds(thresholds)
	if err != nil {
		return nil, err
	}

	if len(fromFile) == 0 {
		if strings.TrimSpace(stationID) == "" {
			return nil, nil
		}
		return []types.MonitoredDevice{{
			Ref:        strings.TrimSpace(stationID),
			Name:       name,
			Thresholds: defaults,
			Hysteresis: hysteresis,
		}}, nil
	}

	devices := make([]types.MonitoredDevice, 0, len(fromFile))
	for _, d := range fromFile {
		if len(d.Thresholds) == 0 {
			d.Thresholds = append([]float64(nil), defaults...)
		}
		if d.Hysteresis == 0 {
			d.Hysteresis = hysteresis
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// ParseThresholds parses a comma separated list such as "50,20" into descending order.
func ParseThresholds(value string) ([]float64, error) {
	var thresholds []float64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid threshold %q", part)
		}
		if t <= 0 || t > 100 {
			return nil, errors.Errorf("threshold %v out of range (0, 100]", t)
		}
		thresholds = append(thresholds, t)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(thresholds)))
	return thresholds, nil
}

// Validate rejects configurations the bot cannot run with.
func Validate(devices []types.MonitoredDevice, maxClicks int, interval time.Duration) error {
	if len(devices) == 0 {
		return errors.New("no devices configured: set DEYE_STATION_ID or a devices list in CONFIG_FILE")
	}
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if strings.TrimSpace(d.Ref) == "" {
			return errors.New("device without ref")
		}
		if seen[d.Ref] {
			return errors.Errorf("device %s configured twice", d.Ref)
		}
		seen[d.Ref] = true
		if len(d.Thresholds) == 0 {
			return errors.Errorf("device %s has no alert thresholds", d.Ref)
		}
		for _, t := range d.Thresholds {
			if t <= 0 || t > 100 {
				return errors.Errorf("device %s threshold %v out of range (0, 100]", d.Ref, t)
			}
		}
		if d.Hysteresis < 0 {
			return errors.Errorf("device %s has negative hysteresis", d.Ref)
		}
	}
	if maxClicks <= 0 {
		return errors.Errorf("MAX_CLICKS_PER_HOUR must be positive, got %d", maxClicks)
	}
	if interval <= 0 {
		return errors.Errorf("ALERT_INTERVAL must be positive, got %s", interval)
	}
	return nil
}
