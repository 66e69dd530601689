// Package budget watches cumulative relay spend against a configured
// ceiling and raises alerts as usage crosses warning, critical, and
// exceeded levels. Alerts fire on level transitions only, so a stream of
// turns at 96% of budget produces one critical alert, not one per turn.
package budget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/cost"
)

type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
	AlertLevelExceeded AlertLevel = "exceeded"
)

type Alert struct {
	Level      AlertLevel
	BudgetUSD  float64
	CurrentUSD float64
	Percentage float64
	Timestamp  time.Time
}

type AlertHandler func(alert Alert)

// Monitor compares the tracker's running total against a single
// service-wide budget. A budget of zero disables monitoring.
type Monitor struct {
	mu            sync.Mutex
	tracker       cost.Tracker
	budgetUSD     float64
	thresholds    Thresholds
	alertHandlers []AlertHandler
	lastLevel     AlertLevel
}

type Thresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:  0.8,
		Critical: 0.95,
	}
}

func NewMonitor(tracker cost.Tracker, budgetUSD float64, thresholds Thresholds) *Monitor {
	return &Monitor{
		tracker:    tracker,
		budgetUSD:  budgetUSD,
		thresholds: thresholds,
	}
}

func (m *Monitor) OnAlert(handler AlertHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertHandlers = append(m.alertHandlers, handler)
}

// Check reads current spend and fires an alert if the level changed
// since the previous check. It returns the alert fired, or nil.
func (m *Monitor) Check(ctx context.Context) (*Alert, error) {
	if m.budgetUSD <= 0 {
		return nil, nil
	}

	current, err := m.tracker.TotalCost(ctx)
	if err != nil {
		return nil, err
	}

	percentage := current / m.budgetUSD

	var level AlertLevel
	switch {
	case percentage >= 1.0:
		level = AlertLevelExceeded
	case percentage >= m.thresholds.Critical:
		level = AlertLevelCritical
	case percentage >= m.thresholds.Warning:
		level = AlertLevelWarning
	}

	m.mu.Lock()
	changed := level != m.lastLevel
	m.lastLevel = level
	handlers := make([]AlertHandler, len(m.alertHandlers))
	copy(handlers, m.alertHandlers)
	m.mu.Unlock()

	if level == "" || !changed {
		return nil, nil
	}

	alert := &Alert{
		Level:      level,
		BudgetUSD:  m.budgetUSD,
		CurrentUSD: current,
		Percentage: percentage * 100,
		Timestamp:  time.Now(),
	}

	for _, handler := range handlers {
		handler(*alert)
	}
	return alert, nil
}

// Exceeded reports whether cumulative spend has reached the budget.
func (m *Monitor) Exceeded(ctx context.Context) (bool, error) {
	if m.budgetUSD <= 0 {
		return false, nil
	}

	current, err := m.tracker.TotalCost(ctx)
	if err != nil {
		return false, err
	}
	return current >= m.budgetUSD, nil
}

func LogAlertHandler(alert Alert) {
	slog.Warn("spend budget alert",
		"level", alert.Level,
		"budget_usd", alert.BudgetUSD,
		"current_usd", alert.CurrentUSD,
		"percentage", alert.Percentage,
	)
}
