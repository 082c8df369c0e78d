package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rsi_bot/internal/models"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastTickUnix atomic.Int64 // unix seconds

	mu         sync.RWMutex
	lastStatus models.TickStatus
	lastInst   string
	lastErr    string
	ticks      int64
	failures   int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// Report - State тоже приёмник тиков: помнит последний.
func (s *State) Report(_ context.Context, res models.TickResult) {
	at := res.StartedAt
	if at.IsZero() {
		at = time.Now()
	}
	s.TouchTick(at)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.lastStatus = res.Status
	s.lastInst = res.Instrument
	s.lastErr = ""
	if res.Err != nil {
		s.lastErr = res.Err.Error()
	}
	if res.Status.Failed() {
		s.failures++
	}
}

type Snapshot struct {
	Ready        bool   `json:"ready"`
	UptimeSec    int64  `json:"uptimeSec"`
	LastTickUnix int64  `json:"lastTickUnix"`
	LastStatus   string `json:"lastStatus,omitempty"`
	Instrument   string `json:"instrument,omitempty"`
	LastError    string `json:"lastError,omitempty"`
	Ticks        int64  `json:"ticks"`
	Failures     int64  `json:"failures"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Ready:        s.Ready(),
		UptimeSec:    int64(s.Uptime().Seconds()),
		LastTickUnix: s.lastTickUnix.Load(),
		LastStatus:   string(s.lastStatus),
		Instrument:   s.lastInst,
		LastError:    s.lastErr,
		Ticks:        s.ticks,
		Failures:     s.failures,
	}
}
