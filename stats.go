package idforge

import (
	"sync"
	"time"
)

// Stats is a point-in-time copy of a Monitor's counters.
type Stats struct {
	Generated       uint64        `json:"generated" yaml:"generated"`
	Collisions      uint64        `json:"collisions" yaml:"collisions"`
	AverageDuration time.Duration `json:"average_duration" yaml:"average_duration"`
}

// Monitor counts generations and collisions and keeps a running average of
// generation time. It is safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	generated  uint64
	collisions uint64
	average    time.Duration
}

// NewMonitor returns a zeroed monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// RecordGeneration counts one generated value that took d.
func (m *Monitor) RecordGeneration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated++
	m.average += (d - m.average) / time.Duration(m.generated)
}

// RecordCollision counts one rejected candidate.
func (m *Monitor) RecordCollision() {
	m.mu.Lock()
	m.collisions++
	m.mu.Unlock()
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Generated:       m.generated,
		Collisions:      m.collisions,
		AverageDuration: m.average,
	}
}

// Reset zeroes every counter.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated, m.collisions, m.average = 0, 0, 0
}
