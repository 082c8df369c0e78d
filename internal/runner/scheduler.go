package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rsi_bot/internal/metrics"
	"rsi_bot/internal/models"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Ticker - то, что запускается по расписанию.
type Ticker interface {
	Tick(ctx context.Context) models.TickResult
}

type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 30 * time.Minute, InitialDelay: 60 * time.Second}
}

// Scheduler дёргает Ticker с фиксированным шагом после начальной задержки.
// Одновременно идёт не больше одного тика: если предыдущий ещё работает,
// срабатывание пропускается, в очередь не встаёт.
type Scheduler struct {
	cfg    Config
	ticker Ticker
	log    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(cfg Config, t Ticker, log *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, ticker: t, log: log.Named("scheduler")}
}

func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("initial_delay", s.cfg.InitialDelay))
	return nil
}

// Stop отменяет контекст тиков и ждёт текущий тик, но не дольше дедлайна ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	finished := make(chan struct{})
	go func() {
		<-done
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.mu.Lock()
		// после полной остановки можно снова Start
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop: in-flight tick did not finish in time")
		return ctx.Err()
	}
}

// Running - идёт ли сейчас тик.
func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	delay := time.NewTimer(s.cfg.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	s.fire(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SkippedTotal.Inc()
		s.log.Warn("previous tick still running, skipping")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("tick panicked", zap.Any("panic", p))
			}
		}()
		s.ticker.Tick(ctx)
	}()
}
