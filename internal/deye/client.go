package deye

import (
	"battery-status-bot/internal/types"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://eu1-developer.deyecloud.com"
	DefaultTimeout = 10 * time.Second
	MaxTimeout     = 15 * time.Second

	// serialPrefix marks a device ref as an inverter serial number instead of a station id.
	serialPrefix = "sn:"

	defaultTokenTTL = time.Hour
)

// Config holds the Deye developer account credentials.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	Email     string
	Password  string
	Timeout   time.Duration
}

// Client reads battery SoC from the Deye cloud open API.
type Client struct {
	http  *resty.Client
	cfg   Config
	now   func() time.Time
	mu    sync.Mutex
	token string
	until time.Time
}

type tokenResponse struct {
	Success     bool   `json:"success"`
	Msg         string `json:"msg"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   any    `json:"expiresIn"`
}

// NewClient creates a client; the timeout is clamped to MaxTimeout.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout > MaxTimeout {
		cfg.Timeout = MaxTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http: httpClient,
		cfg:  cfg,
		now:  time.Now,
	}
}

// FetchSoC returns the current battery SoC of a station id or "sn:<serial>" device.
// Any transport, auth or parse failure yields an unavailable reading.
func (c *Client) FetchSoC(ctx context.Context, ref string) types.Reading {
	soc, err := c.fetch(ctx, ref)
	if err != nil {
		log.Errorf("Deye request error for %s: %v", ref, err)
		return types.Unavailable()
	}
	reading := types.Available(soc)
	if !reading.Valid {
		log.Errorf("Deye returned out of range SoC %v for %s", soc, ref)
	}
	return reading
}

func (c *Client) fetch(ctx context.Context, ref string) (float64, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, err
	}

	var soc float64
	if serial, ok := strings.CutPrefix(ref, serialPrefix); ok {
		soc, err = c.deviceSoC(ctx, token, serial)
	} else {
		soc, err = c.stationSoC(ctx, token, ref)
	}
	if err != nil {
		c.invalidateToken()
		return 0, err
	}
	return soc, nil
}

func (c *Client) stationSoC(ctx context.Context, token, ref string) (float64, error) {
	var stationID any = ref
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		stationID = id
	}

	var data map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("appId", c.cfg.AppID).
		SetBody(map[string]any{"stationId": stationID}).
		SetResult(&data).
		Post("/v1.0/station/latest")
	if err != nil {
		return 0, errors.Wrap(err, "station latest request failed")
	}
	if resp.IsError() {
		return 0, errors.Errorf("station latest returned status %d", resp.StatusCode())
	}
	log.Debugf("Deye RAW response: %s", spew.Sdump(data))

	if ok, _ := data["success"].(bool); !ok {
		return 0, errors.Errorf("station latest unsuccessful: %v", data["msg"])
	}

	if v, found := data["batterySOC"]; found {
		return parseNumber(v)
	}
	if nested, ok := data["data"].(map[string]any); ok {
		if v, found := nested["batterySOC"]; found {
			return parseNumber(v)
		}
	}
	return 0, errors.New("no batterySOC in station response")
}

func (c *Client) deviceSoC(ctx context.Context, token, serial string) (float64, error) {
	var data struct {
		Success        bool   `json:"success"`
		Msg            string `json:"msg"`
		DeviceDataList []struct {
			DeviceSn string `json:"deviceSn"`
			DataList []struct {
				Key   string `json:"key"`
				Value any    `json:"value"`
			} `json:"dataList"`
		} `json:"deviceDataList"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("appId", c.cfg.AppID).
		SetBody(map[string]any{"deviceList": []string{serial}}).
		SetResult(&data).
		Post("/v1.0/device/latest")
	if err != nil {
		return 0, errors.Wrap(err, "device latest request failed")
	}
	if resp.IsError() {
		return 0, errors.Errorf("device latest returned status %d", resp.StatusCode())
	}
	log.Debugf("Deye RAW response: %s", spew.Sdump(data))

	if !data.Success {
		return 0, errors.Errorf("device latest unsuccessful: %s", data.Msg)
	}
	for _, device := range data.DeviceDataList {
		if device.DeviceSn != "" && device.DeviceSn != serial {
			continue
		}
		for _, item := range device.DataList {
			switch strings.ToUpper(item.Key) {
			case "SOC", "BMSSOC", "BATTERYSOC":
				return parseNumber(item.Value)
			}
		}
	}
	return 0, errors.Errorf("no SOC in device response for %s", serial)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.until) {
		return c.token, nil
	}

	var data tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("appId", c.cfg.AppID).
		SetBody(map[string]string{
			"appSecret": c.cfg.AppSecret,
			"email":     c.cfg.Email,
			"password":  hashPassword(c.cfg.Password),
		}).
		SetResult(&data).
		Post("/v1.0/account/token")
	if err != nil {
		return "", errors.Wrap(err, "token request failed")
	}
	if resp.IsError() {
		return "", errors.Errorf("token request returned status %d", resp.StatusCode())
	}
	if data.AccessToken == "" {
		return "", errors.Errorf("no access token in response: %s", data.Msg)
	}

	ttl := defaultTokenTTL
	if seconds, err := parseNumber(data.ExpiresIn); err == nil && seconds > 60 {
		// renew a minute early
		ttl = time.Duration(seconds-60) * time.Second
	}
	c.token = data.AccessToken
	c.until = c.now().Add(ttl)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// parseNumber accepts JSON numbers and numeric strings.
func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "non-numeric value %q", n)
		}
		return f, nil
	default:
		return 0, errors.Errorf("unexpected value %v (%T)", v, v)
	}
}
