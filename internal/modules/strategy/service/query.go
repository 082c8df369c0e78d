package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rsi_bot/internal/models"
)

var ErrEmptyInstrument = errors.New("instrument is empty")

// CurrentSignal считает RSI "на сейчас" и классифицирует его.
// На торговое состояние не влияет.
func (e *Engine) CurrentSignal(ctx context.Context, instrument string) (models.Signal, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return models.Signal{}, ErrEmptyInstrument
	}
	rsi, err := e.currentRSI(ctx, instrument)
	if err != nil {
		return models.Signal{}, err
	}
	return models.Signal{
		Instrument: instrument,
		RSI:        rsi,
		Label:      e.cfg.Thresholds.Classify(rsi),
		Position:   e.CurrentPosition(instrument),
	}, nil
}

func (e *Engine) CurrentPosition(instrument string) models.Position {
	return e.store.Get(strings.TrimSpace(instrument)).CurrentPosition()
}

// Positions - снимок памяти по всем инструментам, которые уже тикали.
func (e *Engine) Positions() map[string]models.Memory {
	return e.store.Snapshot()
}

// SelectInstrument начинает действовать со следующего тика.
func (e *Engine) SelectInstrument(ctx context.Context, instrument string) error {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return ErrEmptyInstrument
	}
	if e.selection == nil {
		return ErrNoInstrument
	}
	if err := e.selection.Set(ctx, instrument); err != nil {
		return fmt.Errorf("select %s: %w", instrument, err)
	}
	e.log.Info("selected market for trading", zap.String("instrument", instrument))
	return nil
}

func (e *Engine) SelectedInstrument(ctx context.Context) (string, error) {
	if e.selection == nil {
		return "", nil
	}
	return e.selection.Get(ctx)
}

// Chart - свечи для графика + текущий RSI по ним же.
func (e *Engine) Chart(ctx context.Context, instrument, resolution string, max int) (models.Chart, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return models.Chart{}, ErrEmptyInstrument
	}
	if resolution == "" {
		resolution = e.cfg.ChartResolution
	}
	if max <= 0 {
		max = e.cfg.ChartMaxBars
	}

	bars, err := e.gw.GetHistoricalPrices(ctx, instrument, resolution, max)
	if err != nil {
		return models.Chart{}, fmt.Errorf("%w: chart %s: %w", ErrDataUnavailable, instrument, err)
	}
	rsi, ok := e.cfg.Calculator.Calculate(models.Closes(bars))
	return models.Chart{
		Instrument: instrument,
		Resolution: resolution,
		Prices:     bars,
		RSI:        rsi,
		HasRSI:     ok,
	}, nil
}
