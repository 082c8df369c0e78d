package models

import (
	"fmt"
	"time"
)

// TickStatus - итог одного тика стратегии.
type TickStatus string

const (
	TickOK                 TickStatus = "ok"        // была сделка
	TickBaseline           TickStatus = "baseline"  // первый расчёт, только запомнили RSI
	TickUnchanged          TickStatus = "unchanged" // RSI тот же или позиция уже нужная
	TickDataUnavailable    TickStatus = "data_unavailable"
	TickGatewayFailure     TickStatus = "gateway_failure"
	TickConfigurationError TickStatus = "configuration_error" // инструмент не выбран
	TickSelectionFailure   TickStatus = "selection_failure"   // хранилище выбора не ответило
	TickSkipped            TickStatus = "skipped"
	TickCanceled           TickStatus = "canceled"
)

// Failed - тик не довёл дело до конца.
func (s TickStatus) Failed() bool {
	switch s {
	case TickDataUnavailable, TickGatewayFailure, TickConfigurationError, TickSelectionFailure, TickCanceled:
		return true
	default:
		return false
	}
}

type ActionKind string

const (
	ActionOpen  ActionKind = "open"
	ActionClose ActionKind = "close"
)

// Action - один вызов брокера внутри тика.
type Action struct {
	Kind      ActionKind
	Direction Position
	Err       error
}

func (a Action) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s %s: %v", a.Kind, a.Direction, a.Err)
	}
	return fmt.Sprintf("%s %s", a.Kind, a.Direction)
}

type TickResult struct {
	ID         string
	Instrument string
	Status     TickStatus

	RSI        float64
	HasRSI     bool
	PrevRSI    float64
	HasPrevRSI bool

	From    Position
	To      Position
	Actions []Action

	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

func (r TickResult) String() string {
	s := fmt.Sprintf("tick %s [%s] status=%s", r.ID, r.Instrument, r.Status)
	if r.HasRSI {
		s += fmt.Sprintf(" rsi=%.4f", r.RSI)
	}
	if r.HasPrevRSI {
		s += fmt.Sprintf(" prev=%.4f", r.PrevRSI)
	}
	if r.From != r.To {
		s += fmt.Sprintf(" %s->%s", r.From, r.To)
	}
	if r.Err != nil {
		s += fmt.Sprintf(" err=%v", r.Err)
	}
	return s
}
