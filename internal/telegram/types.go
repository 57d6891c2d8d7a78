package telegram

import (
	"battery-status-bot/internal/alert"
	"battery-status-bot/internal/commands"
	"battery-status-bot/internal/throttle"
	"battery-status-bot/internal/types"
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	// AlertChatID is a numeric chat id or an @channel username.
	AlertChatID string
	ButtonText  string
}

// Services are the collaborators the command handlers call into.
type Services struct {
	Throttle     *throttle.Throttle
	Fetcher      commands.Fetcher
	Devices      []types.MonitoredDevice
	Alerter      *alert.Alerter
	Readings     commands.ReadingsFunc
	RecentAlerts func(ctx context.Context, limit int) ([]types.AlertRecord, error)
	Now          func() time.Time
}

// sender is the part of tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot telegram interaction client
type Bot struct {
	Bot      *tgbotapi.BotAPI
	Config   BotConfig
	Services Services
	api      sender
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
