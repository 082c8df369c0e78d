package service

import "rsi_bot/internal/models"

// Decision - что делать на этом тике.
//
//	Baseline   -> первый расчёт, только запоминаем RSI
//	Close      -> какую позицию закрыть перед открытием (или пусто)
//	Open       -> какую открыть (или пусто = ничего не делаем)
type Decision struct {
	Baseline bool
	Close    models.Position
	Open     models.Position
}

func (d Decision) Trades() bool { return d.Open.IsOpen() }

// Decide: торгуем направление изменения RSI, а не его уровень.
// Рост -> LONG, падение -> SHORT, равенство -> ничего.
// Если нужная позиция уже открыта - no-op, повторных ордеров нет.
func Decide(mem models.Memory, rsi float64) Decision {
	if !mem.HasRSI {
		return Decision{Baseline: true}
	}

	var want models.Position
	switch {
	case rsi > mem.LastRSI:
		want = models.PositionLong
	case rsi < mem.LastRSI:
		want = models.PositionShort
	default:
		return Decision{}
	}

	cur := mem.CurrentPosition()
	if cur == want {
		return Decision{}
	}

	d := Decision{Open: want}
	if cur.IsOpen() {
		d.Close = cur
	}
	return d
}
