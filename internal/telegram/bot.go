package telegram

import (
	"battery-status-bot/internal/commands"
	"battery-status-bot/internal/metrics"
	"battery-status-bot/internal/types"
	"battery-status-bot/lib/helpers"
	"battery-status-bot/lib/translation"
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const parseMode = "MarkdownV2"

// NewBot creates new telegram bot
func NewBot(c BotConfig, services Services) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug
	log.Debugf("authorized on account %s", bot.Self.UserName)

	return newBot(bot, bot, c, services), nil
}

func newBot(bot *tgbotapi.BotAPI, api sender, c BotConfig, services Services) *Bot {
	if services.Now == nil {
		services.Now = time.Now
	}
	return &Bot{
		Bot:      bot,
		Config:   c,
		Services: services,
		api:      api,
	}
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// StopUpdates stops long polling.
func (b *Bot) StopUpdates() {
	if b.Bot != nil {
		b.Bot.StopReceivingUpdates()
	}
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = parseMode
	sent, err := b.api.Send(msg)
	return sent, errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

// Send delivers an alert to the configured alert chat.
func (b *Bot) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	target := strings.TrimSpace(b.Config.AlertChatID)
	switch {
	case target == "":
		return errors.New("no alert chat configured")
	case strings.HasPrefix(target, "@"):
		msg = tgbotapi.NewMessageToChannel(target, text)
	default:
		chatID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid alert chat id %q", target)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrapf(err, "could not send alert to %s", target)
	}
	return nil
}

// HandleUpdate processes Telegram updates
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	if u.Message == nil {
		log.Debug("Received non-message update")
		return
	}

	message := u.Message
	chatID := message.Chat.ID
	metrics.MessagesHandled.Inc()
	metrics.SeenChat(chatID)
	log.Debugf("received message in chat %d: %q", chatID, message.Text)

	var text string
	switch {
	case message.Command() == "start":
		b.sendStart(chatID)
		return
	case message.Command() == "battery" || strings.TrimSpace(message.Text) == b.Config.ButtonText:
		b.handleBattery(ctx, message)
		return
	case message.Command() == "chart":
		b.handleChart(ctx, message)
		return
	case message.Command() == "alerts":
		text = b.alertsText(ctx)
	case message.IsCommand():
		text = commands.CommandHelp(b.Services.Throttle.Limit())
	default:
		return
	}

	if _, err := b.SendMessage(Message{ChatID: chatID, MessageID: message.MessageID, Text: text}); err != nil {
		log.Errorf("Failed to send message: %v", err)
		return
	}
	metrics.CommandsProcessed.Inc()
}

func (b *Bot) sendStart(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(b.Config.ButtonText)),
	)
	keyboard.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, commands.CommandStart(b.Config.ButtonText, b.Services.Throttle.Limit()))
	msg.ParseMode = parseMode
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		log.Errorf("Failed to send welcome message: %v", err)
		return
	}
	metrics.CommandsProcessed.Inc()
}

func (b *Bot) handleBattery(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := chatID
	if message.From != nil {
		userID = message.From.ID
	}

	placeholder, placeholderErr := b.SendMessage(Message{
		ChatID: chatID,
		Text:   "⏳ " + helpers.EscapeMarkdownV2(translation.Translate("Fetching data…")),
	})
	if placeholderErr != nil {
		log.Errorf("Failed to send placeholder: %v", placeholderErr)
	}

	text, _ := commands.CommandBattery(ctx, b.Services.Throttle, b.Services.Fetcher,
		b.Services.Devices, userID, b.Services.Now())

	if placeholderErr != nil {
		if _, err := b.SendMessage(Message{ChatID: chatID, Text: text}); err != nil {
			log.Errorf("Failed to send battery status: %v", err)
			return
		}
	} else {
		edit := tgbotapi.NewEditMessageText(chatID, placeholder.MessageID, text)
		edit.ParseMode = parseMode
		if _, err := b.api.Send(edit); err != nil {
			log.Errorf("Failed to edit placeholder: %v", err)
			return
		}
	}
	metrics.CommandsProcessed.Inc()
}

func (b *Bot) handleChart(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	chartData, caption, err := commands.CommandChart(ctx, b.Services.Devices, b.Services.Readings, b.Services.Now())
	if err != nil {
		log.Errorf("error rendering chart: %v", err)
		caption = "❌ " + helpers.EscapeMarkdownV2(translation.Translate("Could not build the chart"))
	}

	if chartData == nil {
		if _, err := b.SendMessage(Message{ChatID: chatID, MessageID: message.MessageID, Text: caption}); err != nil {
			log.Errorf("Failed to send message: %v", err)
		}
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "battery.png",
		Bytes: chartData,
	})
	photo.Caption = caption
	photo.ParseMode = parseMode
	photo.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(photo); err != nil {
		log.Error("error sending chart:", err)
		return
	}
	metrics.CommandsProcessed.Inc()
}

func (b *Bot) alertsText(ctx context.Context) string {
	states := b.Services.Alerter.Snapshot()

	var recent []types.AlertRecord
	if b.Services.RecentAlerts != nil {
		var err error
		if recent, err = b.Services.RecentAlerts(ctx, commands.RecentAlertsLimit); err != nil {
			log.Errorf("error fetching recent alerts: %v", err)
		}
	}
	return commands.CommandAlerts(states, recent, b.Services.Now())
}
