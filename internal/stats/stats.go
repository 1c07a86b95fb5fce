package stats

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ModeStats holds broadcast statistics for one delivery strategy
type ModeStats struct {
	Bursts        int     `json:"bursts"`
	Deliveries    int     `json:"deliveries"`
	Failures      int     `json:"failures"`
	TotalMillis   float64 `json:"total_millis"`
	SlowestMillis float64 `json:"slowest_millis"`
}

// AverageMillis is the mean burst latency.
func (m ModeStats) AverageMillis() float64 {
	if m.Bursts == 0 {
		return 0
	}
	return m.TotalMillis / float64(m.Bursts)
}

// Stats holds all broadcast statistics, keyed by mode name
type Stats struct {
	Modes map[string]*ModeStats `json:"modes"`
}

// StatsManager collects per-burst counters. It lives for the process
// lifetime only.
type StatsManager struct {
	stats Stats
	mu    sync.Mutex
}

// NewStatsManager creates an empty stats manager
func NewStatsManager() *StatsManager {
	return &StatsManager{
		stats: Stats{
			Modes: make(map[string]*ModeStats),
		},
	}
}

// AddBurst records one broadcast burst: how many windows were attempted,
// how many of them failed, and how long the burst took.
func (sm *StatsManager) AddBurst(mode string, windows, failures int, elapsed time.Duration) {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ms, exists := sm.stats.Modes[mode]
	if !exists {
		ms = &ModeStats{}
		sm.stats.Modes[mode] = ms
	}

	millis := float64(elapsed) / float64(time.Millisecond)
	ms.Bursts++
	ms.Deliveries += windows - failures
	ms.Failures += failures
	ms.TotalMillis += millis
	if millis > ms.SlowestMillis {
		ms.SlowestMillis = millis
	}
}

// GetStats returns a deep copy of current statistics
func (sm *StatsManager) GetStats() Stats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	statsCopy := Stats{
		Modes: make(map[string]*ModeStats),
	}
	for mode, modeStats := range sm.stats.Modes {
		c := *modeStats
		statsCopy.Modes[mode] = &c
	}
	return statsCopy
}

// GetStatsJSON returns statistics as a JSON string (for D-Bus)
func (sm *StatsManager) GetStatsJSON() (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := json.Marshal(sm.stats)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}

	return string(data), nil
}

// Reset clears all statistics
func (sm *StatsManager) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats = Stats{
		Modes: make(map[string]*ModeStats),
	}
}
