package models

import (
	"strings"
	"time"
)

// Position - текущая экспозиция по инструменту.
type Position string

const (
	PositionNone  Position = "NONE"
	PositionLong  Position = "LONG"
	PositionShort Position = "SHORT"
)

func (p Position) String() string {
	if p == "" {
		return string(PositionNone)
	}
	return string(p)
}

// IsOpen true для LONG/SHORT.
func (p Position) IsOpen() bool {
	return p == PositionLong || p == PositionShort
}

// Side переводит направление в сторону ордера брокера (BUY/SELL).
func (p Position) Side() Side {
	switch p {
	case PositionLong:
		return SideBuy
	case PositionShort:
		return SideSell
	default:
		return SideNone
	}
}

// ParsePosition принимает как LONG/SHORT, так и BUY/SELL брокера.
func ParsePosition(s string) Position {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return PositionLong
	case "SHORT", "SELL":
		return PositionShort
	default:
		return PositionNone
	}
}

// Side как на стороне брокера: "BUY"/"SELL" или пустая строка.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Memory - то, что стратегия помнит про инструмент между тиками.
// Нулевое значение = "ещё не считали": RSI не определён, позиции нет.
type Memory struct {
	LastRSI   float64
	HasRSI    bool
	Position  Position
	UpdatedAt time.Time
}

// CurrentPosition никогда не возвращает пустую строку.
func (m Memory) CurrentPosition() Position {
	if m.Position == "" {
		return PositionNone
	}
	return m.Position
}
