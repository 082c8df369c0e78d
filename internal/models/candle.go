package models

import "time"

// PriceBar - одна свеча истории. Timestamp в миллисекундах epoch.
type PriceBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

func (b PriceBar) Time() time.Time { return time.UnixMilli(b.Timestamp).UTC() }

// Closes достаёт цены закрытия (oldest -> newest), именно их ест RSI.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

type Chart struct {
	Instrument string     `json:"instrument"`
	Resolution string     `json:"resolution"`
	Prices     []PriceBar `json:"prices"`
	RSI        float64    `json:"rsi"`
	HasRSI     bool       `json:"has_rsi"`
}
