package service

import (
	"sync"

	"rsi_bot/internal/models"
)

// Store - память стратегии по инструментам.
// Пишет только Engine изнутри тика, читать можно откуда угодно.
type Store struct {
	mu   sync.RWMutex
	data map[string]models.Memory
}

func NewStore() *Store {
	return &Store{data: make(map[string]models.Memory)}
}

// Get для неизвестного инструмента отдаёт нулевую Memory (RSI не определён, NONE).
func (s *Store) Get(instrument string) models.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[instrument]
	if !ok {
		return models.Memory{Position: models.PositionNone}
	}
	return m
}

// Set - полная замена записи.
func (s *Store) Set(instrument string, m models.Memory) {
	if m.Position == "" {
		m.Position = models.PositionNone
	}
	s.mu.Lock()
	s.data[instrument] = m
	s.mu.Unlock()
}

// Snapshot - копия для статусов/отображения.
func (s *Store) Snapshot() map[string]models.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Memory, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
