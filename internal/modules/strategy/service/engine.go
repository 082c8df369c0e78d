package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"

	"rsi_bot/internal/models"
	"rsi_bot/internal/strategy"
)

var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrGatewayFailure  = errors.New("gateway failure")
	ErrNoInstrument    = errors.New("no instrument selected")
	ErrTickInProgress  = errors.New("tick already in progress")

	ErrSelectionUnavailable = errors.New("selection unavailable")
)

// Gateway - брокер: история цен и ордера. Реализация снаружи (capital_client).
type Gateway interface {
	// GetHistoricalPrices отдаёт свечи oldest -> newest; ошибка транспорта - явная ошибка.
	GetHistoricalPrices(ctx context.Context, instrument, resolution string, maxBars int) ([]models.PriceBar, error)
	OpenPosition(ctx context.Context, instrument string, direction models.Position) error
	ClosePosition(ctx context.Context, instrument string) error
}

// Selection - какой инструмент сейчас торгуем.
type Selection interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, instrument string) error
}

// Reporter - куда уходят результаты тиков (лог, метрики, телеграм).
type Reporter interface {
	Report(ctx context.Context, res models.TickResult)
}

type Config struct {
	Resolution   string
	MaxBars      int
	Calculator   strategy.Calculator
	Thresholds   strategy.Thresholds
	OrderTimeout time.Duration

	ChartResolution string
	ChartMaxBars    int
}

func DefaultConfig() Config {
	return Config{
		Resolution:      "MINUTE_5",
		MaxBars:         100,
		Calculator:      strategy.NewCalculator(strategy.DefaultRSIPeriod, strategy.SmoothingSimple),
		Thresholds:      strategy.DefaultThresholds(),
		OrderTimeout:    30 * time.Second,
		ChartResolution: "HOUR_4",
		ChartMaxBars:    100,
	}
}

type Engine struct {
	cfg       Config
	gw        Gateway
	store     *Store
	selection Selection
	reporter  Reporter
	log       *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(cfg Config, gw Gateway, store *Store, selection Selection, reporter Reporter, log *zap.Logger) *Engine {
	if cfg.MaxBars < cfg.Calculator.MinBars() {
		cfg.MaxBars = cfg.Calculator.MinBars()
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if store == nil {
		store = NewStore()
	}
	return &Engine{
		cfg:       cfg,
		gw:        gw,
		store:     store,
		selection: selection,
		reporter:  reporter,
		log:       log.Named("strategy"),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Tick - одно срабатывание стратегии по выбранному инструменту.
// Никогда не паникует наружу и ничего не ретраит: следующий тик и есть ретрай.
func (e *Engine) Tick(ctx context.Context) models.TickResult {
	res := models.TickResult{ID: uuid.NewString(), StartedAt: e.now()}

	span, ctx := opentracing.StartSpanFromContext(ctx, "strategy.tick")
	defer span.Finish()
	span.SetTag("tick.id", res.ID)

	res = e.tick(ctx, res)
	res.Duration = e.now().Sub(res.StartedAt)

	span.SetTag("instrument", res.Instrument)
	span.SetTag("status", string(res.Status))
	if res.Err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", res.Err.Error())
	}

	if e.reporter != nil {
		e.reporter.Report(ctx, res)
	}
	return res
}

func (e *Engine) tick(ctx context.Context, res models.TickResult) models.TickResult {
	if e.selection == nil {
		return failed(res, models.TickConfigurationError, ErrNoInstrument)
	}
	instrument, err := e.selection.Get(ctx)
	if err != nil {
		return failed(res, models.TickSelectionFailure, fmt.Errorf("%w: %w", ErrSelectionUnavailable, err))
	}
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return failed(res, models.TickConfigurationError, ErrNoInstrument)
	}
	res.Instrument = instrument

	lock := e.lockFor(instrument)
	if !lock.TryLock() {
		return failed(res, models.TickSkipped, ErrTickInProgress)
	}
	defer lock.Unlock()

	return e.run(ctx, res)
}

func (e *Engine) run(ctx context.Context, res models.TickResult) models.TickResult {
	instrument := res.Instrument
	mem := e.store.Get(instrument)
	res.From, res.To = mem.CurrentPosition(), mem.CurrentPosition()
	res.PrevRSI, res.HasPrevRSI = mem.LastRSI, mem.HasRSI

	rsi, err := e.currentRSI(ctx, instrument)
	if err != nil {
		if ctx.Err() != nil {
			return failed(res, models.TickCanceled, ctx.Err())
		}
		return failed(res, models.TickDataUnavailable, err)
	}
	res.RSI, res.HasRSI = rsi, true

	// до первого ордера отмена ещё безопасна - просто бросаем тик
	if err := ctx.Err(); err != nil {
		return failed(res, models.TickCanceled, err)
	}

	d := Decide(mem, rsi)
	switch {
	case d.Baseline:
		e.log.Info("first calculation, storing baseline",
			zap.String("instrument", instrument), zap.Float64("rsi", rsi))
		e.remember(instrument, rsi, mem.CurrentPosition())
		res.Status = models.TickBaseline
		return res
	case !d.Trades():
		e.log.Debug("no trade",
			zap.String("instrument", instrument),
			zap.Float64("prev", mem.LastRSI), zap.Float64("rsi", rsi),
			zap.Stringer("position", mem.CurrentPosition()))
		e.remember(instrument, rsi, mem.CurrentPosition())
		res.Status = models.TickUnchanged
		return res
	}

	e.log.Info("rsi direction changed",
		zap.String("instrument", instrument),
		zap.Float64("prev", mem.LastRSI), zap.Float64("rsi", rsi),
		zap.Stringer("from", mem.CurrentPosition()), zap.Stringer("to", d.Open))

	// после первого ордера доводим close+open до конца, отмена уже не прерывает
	orderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.OrderTimeout)
	defer cancel()

	if d.Close.IsOpen() {
		err := e.gw.ClosePosition(orderCtx, instrument)
		res.Actions = append(res.Actions, models.Action{Kind: models.ActionClose, Direction: d.Close, Err: err})
		if err != nil {
			return failed(res, models.TickGatewayFailure,
				fmt.Errorf("%w: close %s %s: %w", ErrGatewayFailure, d.Close, instrument, err))
		}
		// брокер подтвердил закрытие: позиции больше нет, RSI оставляем прежний.
		// Если open ниже упадёт, в памяти останется NONE, а не позиция до тика.
		e.store.Set(instrument, models.Memory{
			LastRSI:   mem.LastRSI,
			HasRSI:    mem.HasRSI,
			Position:  models.PositionNone,
			UpdatedAt: e.now(),
		})
		res.To = models.PositionNone
	}

	err = e.gw.OpenPosition(orderCtx, instrument, d.Open)
	res.Actions = append(res.Actions, models.Action{Kind: models.ActionOpen, Direction: d.Open, Err: err})
	if err != nil {
		return failed(res, models.TickGatewayFailure,
			fmt.Errorf("%w: open %s %s: %w", ErrGatewayFailure, d.Open, instrument, err))
	}

	e.remember(instrument, rsi, d.Open)
	res.To = d.Open
	res.Status = models.TickOK
	return res
}

func (e *Engine) currentRSI(ctx context.Context, instrument string) (float64, error) {
	bars, err := e.gw.GetHistoricalPrices(ctx, instrument, e.cfg.Resolution, e.cfg.MaxBars)
	if err != nil {
		return 0, fmt.Errorf("%w: history %s: %w", ErrDataUnavailable, instrument, err)
	}
	rsi, ok := e.cfg.Calculator.Calculate(models.Closes(bars))
	if !ok {
		return 0, fmt.Errorf("%w: %s has %d bars, need %d",
			ErrDataUnavailable, instrument, len(bars), e.cfg.Calculator.MinBars())
	}
	return rsi, nil
}

func (e *Engine) remember(instrument string, rsi float64, pos models.Position) {
	e.store.Set(instrument, models.Memory{
		LastRSI:   rsi,
		HasRSI:    true,
		Position:  pos,
		UpdatedAt: e.now(),
	})
}

func (e *Engine) lockFor(instrument string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[instrument]
	if !ok {
		l = &sync.Mutex{}
		e.locks[instrument] = l
	}
	return l
}

func failed(res models.TickResult, status models.TickStatus, err error) models.TickResult {
	res.Status = status
	res.Err = err
	return res
}
