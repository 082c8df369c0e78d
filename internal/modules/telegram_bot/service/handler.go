package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"rsi_bot/internal/helper"
	"rsi_bot/internal/models"
	capitalsvc "rsi_bot/internal/modules/capital_client/service"
)

// Trader - то, что бот умеет спросить у стратегии.
type Trader interface {
	CurrentSignal(ctx context.Context, instrument string) (models.Signal, error)
	CurrentPosition(instrument string) models.Position
	Positions() map[string]models.Memory
	SelectInstrument(ctx context.Context, instrument string) error
	SelectedInstrument(ctx context.Context) (string, error)
	Chart(ctx context.Context, instrument, resolution string, max int) (models.Chart, error)
}

// Broker - справочные запросы к брокеру: рынки и счета.
type Broker interface {
	MarketCategories(ctx context.Context) ([]capitalsvc.Category, error)
	Markets(ctx context.Context, nodeID string) (capitalsvc.Listing, error)
	Market(ctx context.Context, epic string) (capitalsvc.Market, error)
	Accounts(ctx context.Context) ([]capitalsvc.Account, error)
	SwitchAccount(ctx context.Context, accountID string) error
	Environment() string
}

var (
	errNoSelection = errors.New("инструмент не выбран, используй /select EPIC")
	errNoBroker    = errors.New("брокер не подключён")
)

// кнопки главного меню -> команды
var menuButtons = map[string]string{
	"📈 RSI":     "rsi",
	"📍 Позиция": "position",
	"📊 Статус":  "status",
	"🕯 График":  "chart",
	"🗂 Рынки":   "markets",
	"👤 Счета":   "accounts",
}

type Handler struct {
	tg     *Telegram
	trader Trader
	broker Broker
	log    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHandler(tg *Telegram, trader Trader, broker Broker, log *zap.Logger) *Handler {
	return &Handler{tg: tg, trader: trader, broker: broker, log: log.Named("telegram")}
}

// Start запускает long polling. Без токена ничего не делает.
func (h *Handler) Start(parent context.Context) {
	if !h.tg.Enabled() {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	h.cancel = cancel
	updates := h.tg.updates()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				h.handleUpdate(ctx, update)
			}
		}
	}()
}

func (h *Handler) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.tg.stopUpdates()
	h.wg.Wait()
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	// если чат оператора задан - чужих не слушаем
	if own := h.tg.ChatID(); own != 0 && own != chatID {
		return
	}

	var cmd, args string
	if msg.IsCommand() {
		cmd, args = msg.Command(), msg.CommandArguments()
	} else if c, ok := menuButtons[strings.TrimSpace(msg.Text)]; ok {
		cmd = c
	} else {
		return
	}

	if cmd == "start" {
		h.sendMenu(ctx, chatID)
		return
	}

	reply := h.handleCommand(ctx, cmd, args)
	if _, err := h.tg.Send(ctx, chatID, reply); err != nil {
		h.log.Warn("reply", zap.String("cmd", cmd), zap.Error(err))
	}
}

func (h *Handler) sendMenu(ctx context.Context, chatID int64) {
	replyKb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📈 RSI"),
			tgbotapi.NewKeyboardButton("📍 Позиция"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📊 Статус"),
			tgbotapi.NewKeyboardButton("🕯 График"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗂 Рынки"),
			tgbotapi.NewKeyboardButton("👤 Счета"),
		),
	)
	msg := tgbotapi.NewMessage(chatID, helpText)
	msg.ReplyMarkup = replyKb
	if _, err := h.tg.SendMessage(ctx, msg); err != nil {
		h.log.Warn("send menu", zap.Error(err))
	}
}

const helpText = "RSI-бот: торгует направление изменения RSI.\n\n" +
	"/rsi [EPIC] — текущий RSI и сигнал\n" +
	"/position [EPIC] — текущая позиция\n" +
	"/select EPIC — выбрать инструмент для торговли\n" +
	"/chart [EPIC] [таймфрейм] [свечей] — последние цены и RSI\n" +
	"/status — выбранный инструмент и память стратегии\n" +
	"/markets [ID] — категории рынков или рынки категории\n" +
	"/accounts — счета у брокера\n" +
	"/account ID — переключить счёт"

// handleCommand возвращает текст ответа; ошибки тоже превращаются в текст.
func (h *Handler) handleCommand(ctx context.Context, cmd, args string) string {
	fields := strings.Fields(args)
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch cmd {
	case "help":
		return helpText

	case "rsi":
		inst, err := h.instrument(ctx, arg(0))
		if err != nil {
			return "❗️ " + err.Error()
		}
		sig, err := h.trader.CurrentSignal(ctx, inst)
		if err != nil {
			return "❗️ Не удалось посчитать RSI: " + err.Error()
		}
		return formatSignal(sig)

	case "position":
		inst, err := h.instrument(ctx, arg(0))
		if err != nil {
			return "❗️ " + err.Error()
		}
		return inst + ": " + h.trader.CurrentPosition(inst).String()

	case "select":
		inst := strings.ToUpper(arg(0))
		if inst == "" {
			return "Формат: /select EPIC"
		}
		// если брокер доступен, сначала убеждаемся что такой рынок есть
		var market *capitalsvc.Market
		if h.broker != nil {
			m, err := h.broker.Market(ctx, inst)
			if err != nil {
				return "❗️ Рынок " + inst + " не найден: " + err.Error()
			}
			market = &m
		}
		if err := h.trader.SelectInstrument(ctx, inst); err != nil {
			return "❗️ " + err.Error()
		}
		return formatSelected(inst, market)

	case "markets":
		if h.broker == nil {
			return "❗️ " + errNoBroker.Error()
		}
		if node := arg(0); node != "" {
			l, err := h.broker.Markets(ctx, node)
			if err != nil {
				return "❗️ Не удалось получить рынки: " + err.Error()
			}
			return formatListing(node, l)
		}
		cats, err := h.broker.MarketCategories(ctx)
		if err != nil {
			return "❗️ Не удалось получить категории: " + err.Error()
		}
		return formatCategories(cats)

	case "accounts":
		if h.broker == nil {
			return "❗️ " + errNoBroker.Error()
		}
		accs, err := h.broker.Accounts(ctx)
		if err != nil {
			return "❗️ Не удалось получить счета: " + err.Error()
		}
		return formatAccounts(h.broker.Environment(), accs)

	case "account":
		if h.broker == nil {
			return "❗️ " + errNoBroker.Error()
		}
		id := arg(0)
		if id == "" {
			return "Формат: /account ID (список: /accounts)"
		}
		if err := h.broker.SwitchAccount(ctx, id); err != nil {
			return "❗️ " + err.Error()
		}
		return "✅ Активный счёт: " + id

	case "chart":
		inst, err := h.instrument(ctx, arg(0))
		if err != nil {
			return "❗️ " + err.Error()
		}
		ch, err := h.trader.Chart(ctx, inst, helper.NormResolution(arg(1)), mustInt(arg(2)))
		if err != nil {
			return "❗️ Нет данных: " + err.Error()
		}
		return formatChart(ch)

	case "status":
		selected, err := h.trader.SelectedInstrument(ctx)
		if err != nil {
			return "❗️ " + err.Error()
		}
		return formatStatus(selected, h.trader.Positions())

	default:
		return "Неизвестная команда, см. /help"
	}
}

// instrument - явный аргумент или текущий выбор.
func (h *Handler) instrument(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return strings.ToUpper(explicit), nil
	}
	inst, err := h.trader.SelectedInstrument(ctx)
	if err != nil {
		return "", err
	}
	if inst == "" {
		return "", errNoSelection
	}
	return inst, nil
}
