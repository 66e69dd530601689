package budget

import (
	"context"
	"testing"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/cost"
)

func trackerWithSpend(t *testing.T, usd float64) *cost.InMemoryTracker {
	t.Helper()
	tracker := cost.NewInMemoryTracker()
	if usd > 0 {
		err := tracker.Record(context.Background(), cost.UsageRecord{
			RequestID: "seed",
			Agent:     "CustomerSupport",
			Model:     "claude-sonnet-4-20250514",
			CostUSD:   usd,
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
	return tracker
}

func TestMonitor_Check(t *testing.T) {
	tests := []struct {
		name      string
		budget    float64
		spend     float64
		wantLevel AlertLevel
		wantAlert bool
	}{
		{"disabled", 0, 100, "", false},
		{"under warning", 10, 5, "", false},
		{"warning", 10, 8.5, AlertLevelWarning, true},
		{"critical", 10, 9.6, AlertLevelCritical, true},
		{"exceeded", 10, 12, AlertLevelExceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(trackerWithSpend(t, tt.spend), tt.budget, DefaultThresholds())

			var fired []Alert
			m.OnAlert(func(a Alert) { fired = append(fired, a) })

			alert, err := m.Check(context.Background())
			if err != nil {
				t.Fatalf("Check: %v", err)
			}

			if tt.wantAlert {
				if alert == nil {
					t.Fatal("no alert fired")
				}
				if alert.Level != tt.wantLevel {
					t.Errorf("level = %q, want %q", alert.Level, tt.wantLevel)
				}
				if len(fired) != 1 {
					t.Errorf("handler fired %d times, want 1", len(fired))
				}
			} else {
				if alert != nil {
					t.Errorf("unexpected alert: %+v", alert)
				}
				if len(fired) != 0 {
					t.Errorf("handler fired %d times, want 0", len(fired))
				}
			}
		})
	}
}

func TestMonitor_AlertsOnceTilLevelChanges(t *testing.T) {
	tracker := trackerWithSpend(t, 8.5)
	m := NewMonitor(tracker, 10, DefaultThresholds())

	var fired []Alert
	m.OnAlert(func(a Alert) { fired = append(fired, a) })

	for i := 0; i < 3; i++ {
		if _, err := m.Check(context.Background()); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}
	if len(fired) != 1 {
		t.Fatalf("handler fired %d times at steady level, want 1", len(fired))
	}

	// Crossing into critical fires again.
	err := tracker.Record(context.Background(), cost.UsageRecord{RequestID: "r2", CostUSD: 1.2, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(fired) != 2 {
		t.Fatalf("handler fired %d times after level change, want 2", len(fired))
	}
	if fired[1].Level != AlertLevelCritical {
		t.Errorf("second alert level = %q, want critical", fired[1].Level)
	}
}

func TestMonitor_Exceeded(t *testing.T) {
	m := NewMonitor(trackerWithSpend(t, 12), 10, DefaultThresholds())
	exceeded, err := m.Exceeded(context.Background())
	if err != nil {
		t.Fatalf("Exceeded: %v", err)
	}
	if !exceeded {
		t.Error("Exceeded = false with spend over budget")
	}

	disabled := NewMonitor(trackerWithSpend(t, 12), 0, DefaultThresholds())
	exceeded, err = disabled.Exceeded(context.Background())
	if err != nil {
		t.Fatalf("Exceeded: %v", err)
	}
	if exceeded {
		t.Error("Exceeded = true with monitoring disabled")
	}
}
