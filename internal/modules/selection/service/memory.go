package service

import (
	"context"
	"strings"
	"sync"
)

// Store - выбранный для торговли инструмент (один на процесс).
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, instrument string) error
}

type Memory struct {
	mu         sync.RWMutex
	instrument string
}

var _ Store = (*Memory)(nil)

func NewMemory(seed string) *Memory {
	return &Memory{instrument: strings.TrimSpace(seed)}
}

func (m *Memory) Get(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instrument, nil
}

func (m *Memory) Set(_ context.Context, instrument string) error {
	m.mu.Lock()
	m.instrument = strings.TrimSpace(instrument)
	m.mu.Unlock()
	return nil
}
