package strategy

import (
	"fmt"
	"math"
	"strings"
)

const DefaultRSIPeriod = 14

// Smoothing - как усредняем приросты/потери.
type Smoothing string

const (
	// SmoothingSimple - простое среднее по последним period дельтам (окно period+1 закрытий).
	SmoothingSimple Smoothing = "simple"
	// SmoothingWilder - сглаживание Уайлдера по всему окну, затравка = простое среднее первых period дельт.
	SmoothingWilder Smoothing = "wilder"
)

func ParseSmoothing(s string) (Smoothing, error) {
	switch Smoothing(strings.ToLower(strings.TrimSpace(s))) {
	case SmoothingSimple, "":
		return SmoothingSimple, nil
	case SmoothingWilder:
		return SmoothingWilder, nil
	}
	return "", fmt.Errorf("unknown rsi smoothing %q", s)
}

// Calculator фиксирует период и метод на всё время жизни процесса,
// чтобы соседние тики сравнивали сопоставимые значения.
type Calculator struct {
	Period    int
	Smoothing Smoothing
}

func NewCalculator(period int, smoothing Smoothing) Calculator {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if smoothing == "" {
		smoothing = SmoothingSimple
	}
	return Calculator{Period: period, Smoothing: smoothing}
}

// MinBars - сколько закрытий нужно, чтобы RSI был определён.
func (c Calculator) MinBars() int { return c.Period + 1 }

// Calculate возвращает (rsi, true) или (0, false), если данных не хватает.
func (c Calculator) Calculate(closes []float64) (float64, bool) {
	if c.Smoothing == SmoothingWilder {
		return WilderRSI(closes, c.Period)
	}
	return RSI(closes, c.Period)
}

// RSI по последним period+1 закрытиям (oldest -> newest), простое среднее.
// ok=false: закрытий меньше period+1, period<=0 или в окне есть NaN/Inf.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	window := closes[len(closes)-period-1:]
	if !finite(window) {
		return 0, false
	}

	gain, loss := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		g, l := split(window[i] - window[i-1])
		gain += g
		loss += l
	}
	n := float64(period)
	return fromAverages(gain/n, loss/n), true
}

// WilderRSI - классический RSI Уайлдера по всему ряду.
func WilderRSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	if !finite(closes) {
		return 0, false
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain += g
		avgLoss += l
	}
	n := float64(period)
	avgGain /= n
	avgLoss /= n

	for i := period + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
	}
	return fromAverages(avgGain, avgLoss), true
}

func fromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func finite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
