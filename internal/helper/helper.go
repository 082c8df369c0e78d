package helper

import (
	"math"
	"strconv"
	"strings"
)

// NormResolution приводит таймфрейм к виду Capital.com: 5m -> MINUTE_5, 4h -> HOUR_4.
// Уже нормальные значения и неизвестное отдаются как есть (в верхнем регистре).
func NormResolution(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "1m", "m1", "minute":
		return "MINUTE"
	case "5m", "m5":
		return "MINUTE_5"
	case "15m", "m15":
		return "MINUTE_15"
	case "30m", "m30":
		return "MINUTE_30"
	case "60m", "1h", "h1", "hour":
		return "HOUR"
	case "4h", "h4", "240m":
		return "HOUR_4"
	case "1d", "d1", "day":
		return "DAY"
	case "1w", "w1", "week":
		return "WEEK"
	default:
		return strings.ToUpper(s)
	}
}

// FormatSize - объём сделки без хвостовых нулей.
func FormatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
