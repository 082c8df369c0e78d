package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rsi_bot/internal/models"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "strategy_ticks_total", Help: "Strategy ticks by final status"},
		[]string{"status"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "strategy_orders_total", Help: "Broker order calls"},
		[]string{"action", "direction", "result"},
	)
	SkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scheduler_skipped_total", Help: "Scheduled firings skipped because a tick was still running"},
	)
	LastRSI = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "strategy_rsi", Help: "Last computed RSI per instrument"},
		[]string{"instrument"},
	)
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strategy_tick_duration_seconds",
			Help:    "Wall time of a strategy tick",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, OrdersTotal, SkippedTotal, LastRSI, TickDuration)
}

// Observe раскладывает результат тика по счётчикам.
func Observe(res models.TickResult) {
	TicksTotal.WithLabelValues(string(res.Status)).Inc()
	TickDuration.Observe(res.Duration.Seconds())
	if res.HasRSI && res.Instrument != "" {
		LastRSI.WithLabelValues(res.Instrument).Set(res.RSI)
	}
	for _, a := range res.Actions {
		result := "ok"
		if a.Err != nil {
			result = "error"
		}
		OrdersTotal.WithLabelValues(string(a.Kind), a.Direction.String(), result).Inc()
	}
}

// Report - Observe в форме приёмника тиков.
func Report(_ context.Context, res models.TickResult) { Observe(res) }

func Handler() http.Handler { return promhttp.Handler() }
