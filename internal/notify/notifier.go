package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rsi_bot/internal/models"
)

// Reporter - приёмник результатов тиков.
type Reporter interface {
	Report(ctx context.Context, res models.TickResult)
}

// Func позволяет передать функцию как Reporter.
type Func func(ctx context.Context, res models.TickResult)

func (f Func) Report(ctx context.Context, res models.TickResult) { f(ctx, res) }

// Multi раздаёт результат всем по очереди. nil-элементы пропускаются.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, res models.TickResult) {
	for _, r := range m {
		if r == nil {
			continue
		}
		r.Report(ctx, res)
	}
}

// Log пишет каждый тик в zap. Уровень по статусу, см. Report.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("tick")}
}

func (l *Log) Report(_ context.Context, res models.TickResult) {
	fields := []zap.Field{
		zap.String("id", res.ID),
		zap.String("instrument", res.Instrument),
		zap.String("status", string(res.Status)),
		zap.Stringer("from", res.From),
		zap.Stringer("to", res.To),
		zap.Duration("took", res.Duration),
	}
	if res.HasRSI {
		fields = append(fields, zap.Float64("rsi", res.RSI))
	}
	if res.HasPrevRSI {
		fields = append(fields, zap.Float64("prev_rsi", res.PrevRSI))
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}

	switch {
	case res.Status.Failed():
		l.log.Warn("tick failed", fields...)
	case res.Status == models.TickOK:
		l.log.Info("tick traded", fields...)
	default:
		l.log.Debug("tick", fields...)
	}
}

// Worth - стоит ли беспокоить оператора: сделки и сбои, но не рутина.
func Worth(res models.TickResult) bool {
	return res.Status == models.TickOK || (res.Status.Failed() && res.Status != models.TickCanceled)
}

// Format - короткий текст для чата.
func Format(res models.TickResult) string {
	var b strings.Builder
	switch {
	case res.Status == models.TickOK:
		fmt.Fprintf(&b, "✅ %s: %s → %s", res.Instrument, res.From, res.To)
	case res.Status.Failed():
		fmt.Fprintf(&b, "⚠️ %s: %s", orDash(res.Instrument), res.Status)
	default:
		fmt.Fprintf(&b, "%s: %s", orDash(res.Instrument), res.Status)
	}
	if res.HasRSI {
		if res.HasPrevRSI {
			fmt.Fprintf(&b, "\nRSI %.2f → %.2f", res.PrevRSI, res.RSI)
		} else {
			fmt.Fprintf(&b, "\nRSI %.2f", res.RSI)
		}
	}
	for _, a := range res.Actions {
		fmt.Fprintf(&b, "\n• %s", a)
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "\n%s", res.Err)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
