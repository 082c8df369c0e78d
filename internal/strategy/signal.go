package strategy

import "rsi_bot/internal/models"

const (
	DefaultOverbought = 70.0
	DefaultOversold   = 30.0
)

// Thresholds для отображения перекупленности/перепроданности.
type Thresholds struct {
	Overbought float64
	Oversold   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Overbought: DefaultOverbought, Oversold: DefaultOversold}
}

// Classify - строго больше/меньше, границы считаются NEUTRAL.
func (t Thresholds) Classify(rsi float64) models.Label {
	switch {
	case rsi > t.Overbought:
		return models.LabelOverbought
	case rsi < t.Oversold:
		return models.LabelOversold
	default:
		return models.LabelNeutral
	}
}
