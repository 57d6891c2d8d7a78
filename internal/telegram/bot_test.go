package telegram

import (
	"battery-status-bot/internal/alert"
	"battery-status-bot/internal/throttle"
	"battery-status-bot/internal/types"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 77}, f.err
}

func (f *fakeSender) all() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

type fixedFetcher struct{ soc float64 }

func (f fixedFetcher) FetchSoC(context.Context, string) types.Reading {
	return types.Available(f.soc)
}

type nopChannel struct{}

func (nopChannel) Send(context.Context, string) error { return nil }

const button = "🔋 Battery status"

var now = time.Unix(1_700_000_000, 0)

func newTestBot(t *testing.T, api *fakeSender, alertChat string) *Bot {
	t.Helper()
	devices := []types.MonitoredDevice{{Ref: "st-1", Name: "Home", Thresholds: []float64{50, 20}, Hysteresis: 5}}
	alerter, err := alert.NewAlerter(devices, fixedFetcher{soc: 87}, nopChannel{})
	require.NoError(t, err)

	return newBot(nil, api, BotConfig{AlertChatID: alertChat, ButtonText: button}, Services{
		Throttle: throttle.New(4, time.Hour),
		Fetcher:  fixedFetcher{soc: 87},
		Devices:  devices,
		Alerter:  alerter,
		Readings: func(context.Context, string, time.Time) ([]types.ReadingPoint, error) { return nil, nil },
		RecentAlerts: func(context.Context, int) ([]types.AlertRecord, error) {
			return nil, nil
		},
		Now: func() time.Time { return now },
	})
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 10,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 500},
		From:      &tgbotapi.User{ID: 42},
	}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestButtonSendsPlaceholderThenEdits(t *testing.T) {
	require := require.New(t)
	api := &fakeSender{}
	bot := newTestBot(t, api, "")

	bot.HandleUpdate(context.Background(), textUpdate(button))

	sent := api.all()
	require.Len(sent, 2)
	placeholder, ok := sent[0].(tgbotapi.MessageConfig)
	require.True(ok)
	require.Contains(placeholder.Text, "Fetching data")

	edit, ok := sent[1].(tgbotapi.EditMessageTextConfig)
	require.True(ok)
	require.Equal(77, edit.MessageID)
	require.Equal(int64(500), edit.ChatID)
	require.Contains(edit.Text, "87%")
	require.Equal("MarkdownV2", edit.ParseMode)
}

func TestBatteryCommandIsRateLimited(t *testing.T) {
	api := &fakeSender{}
	bot := newTestBot(t, api, "")

	for i := 0; i < 5; i++ {
		bot.HandleUpdate(context.Background(), textUpdate("/battery"))
	}

	sent := api.all()
	require.Len(t, sent, 10)
	last, ok := sent[9].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, last.Text, "Request limit reached")
}

func TestPlaceholderFailureFallsBackToNewMessage(t *testing.T) {
	api := &fakeSender{err: errors.New("flood wait")}
	bot := newTestBot(t, api, "")

	bot.HandleUpdate(context.Background(), textUpdate(button))

	sent := api.all()
	require.Len(t, sent, 2)
	result, ok := sent[1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, result.Text, "87%")
}

func TestStartShowsKeyboard(t *testing.T) {
	api := &fakeSender{}
	bot := newTestBot(t, api, "")

	bot.HandleUpdate(context.Background(), textUpdate("/start"))

	sent := api.all()
	require.Len(t, sent, 1)
	msg := sent[0].(tgbotapi.MessageConfig)
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, button, keyboard.Keyboard[0][0].Text)
	assert.True(t, keyboard.ResizeKeyboard)
}

func TestAlertsCommand(t *testing.T) {
	api := &fakeSender{}
	bot := newTestBot(t, api, "")

	bot.HandleUpdate(context.Background(), textUpdate("/alerts"))

	sent := api.all()
	require.Len(t, sent, 1)
	msg := sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Alert thresholds")
	assert.Contains(t, msg.Text, "🟢 50% armed")
	assert.Equal(t, 10, msg.ReplyToMessageID)
}

func TestChartWithoutDataRepliesWithText(t *testing.T) {
	api := &fakeSender{}
	bot := newTestBot(t, api, "")

	bot.HandleUpdate(context.Background(), textUpdate("/chart"))

	sent := api.all()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].(tgbotapi.MessageConfig).Text, "Not enough data")
}

func TestUnknownCommandShowsHelpAndPlainTextIsIgnored(t *testing.T) {
	api := &fakeSender{}
	bot := newTestBot(t, api, "")

	bot.HandleUpdate(context.Background(), textUpdate("hello there"))
	bot.HandleUpdate(context.Background(), tgbotapi.Update{})
	require.Empty(t, api.all())

	bot.HandleUpdate(context.Background(), textUpdate("/whatever"))
	sent := api.all()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].(tgbotapi.MessageConfig).Text, "/battery")
}

func TestSendTargets(t *testing.T) {
	api := &fakeSender{}

	require.NoError(t, newTestBot(t, api, "-100123").Send(context.Background(), "low"))
	require.NoError(t, newTestBot(t, api, "@building_battery").Send(context.Background(), "low"))

	sent := api.all()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(-100123), sent[0].(tgbotapi.MessageConfig).ChatID)
	assert.Equal(t, "@building_battery", sent[1].(tgbotapi.MessageConfig).ChannelUsername)
	assert.Equal(t, "MarkdownV2", sent[1].(tgbotapi.MessageConfig).ParseMode)
}

func TestSendErrors(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, newTestBot(t, &fakeSender{}, "").Send(ctx, "x"))
	assert.Error(t, newTestBot(t, &fakeSender{}, "not-a-chat").Send(ctx, "x"))
	assert.ErrorContains(t, newTestBot(t, &fakeSender{err: errors.New("forbidden")}, "1").Send(ctx, "x"), "forbidden")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	api := &fakeSender{}
	assert.ErrorIs(t, newTestBot(t, api, "1").Send(cancelled, "x"), context.Canceled)
	assert.Empty(t, api.all())
}
