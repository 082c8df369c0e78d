package service

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"rsi_bot/internal/models"
	"rsi_bot/internal/modules/config"
	"rsi_bot/internal/notify"
)

// Telegram - отправка в чат оператора + поток апдейтов для команд.
// Без токена бот выключен: все методы молча ничего не делают.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
}

var _ notify.Reporter = (*Telegram)(nil)

func NewTelegram(cfg *config.Config, log *zap.Logger) (*Telegram, error) {
	t := &Telegram{chatID: cfg.Telegram.ChatID, log: log.Named("telegram")}
	if cfg.Telegram.Token == "" {
		t.log.Info("telegram token is empty, bot disabled")
		return t, nil
	}

	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	t.bot = b
	t.log.Info("telegram bot authorized", zap.String("user", b.Self.UserName))
	return t, nil
}

func (t *Telegram) Enabled() bool { return t != nil && t.bot != nil }

// ChatID - чат оператора из конфига, 0 = не задан.
func (t *Telegram) ChatID() int64 { return t.chatID }

func (t *Telegram) Send(ctx context.Context, chatID int64, msg string) (tgbot.Message, error) {
	return t.SendMessage(ctx, tgbot.NewMessage(chatID, msg))
}

func (t *Telegram) SendF(ctx context.Context, chatID int64, format string, args ...any) (tgbot.Message, error) {
	return t.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

func (t *Telegram) SendMessage(_ context.Context, message tgbot.MessageConfig) (tgbot.Message, error) {
	if !t.Enabled() || message.ChatID == 0 {
		return tgbot.Message{}, nil
	}
	return t.bot.Send(message)
}

// SendService - сообщение в чат оператора (старт/стоп сервиса и т.п.).
func (t *Telegram) SendService(ctx context.Context, msg string) {
	if _, err := t.Send(ctx, t.chatID, msg); err != nil {
		t.log.Warn("send service message", zap.Error(err))
	}
}

// Report шлёт в чат только сделки и сбои.
func (t *Telegram) Report(ctx context.Context, res models.TickResult) {
	if !notify.Worth(res) {
		return
	}
	if _, err := t.Send(ctx, t.chatID, notify.Format(res)); err != nil {
		t.log.Warn("report tick", zap.String("tick", res.ID), zap.Error(err))
	}
}

func (t *Telegram) updates() tgbot.UpdatesChannel {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	return t.bot.GetUpdatesChan(u)
}

func (t *Telegram) stopUpdates() {
	if t.Enabled() {
		t.bot.StopReceivingUpdates()
	}
}
