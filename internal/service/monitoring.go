package service

import (
	"context"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
)

// recentAlertsOnDashboard is how many active alerts the overview lists.
const recentAlertsOnDashboard = 5

// Snapshot returns everything the dashboard renders in one frame.
func (c *Controller) Snapshot(ctx context.Context) models.Snapshot {
	now := c.now()

	c.mu.RLock()
	snap := models.Snapshot{
		Connection:  c.status,
		Temperature: latestOf(c.latest, models.MetricTemperature),
		Pressure:    latestOf(c.latest, models.MetricPressure),
		Series:      c.series.snapshot(),
		Valves:      c.valvesLocked(),
		GeneratedAt: now.UTC(),
	}
	c.mu.RUnlock()

	for _, v := range snap.Valves {
		if v.Status == models.ValveOpen {
			snap.ValvesOpen++
		} else {
			snap.ValvesClosed++
		}
	}
	snap.Alerts = c.register.Counts(now)
	snap.RecentAlerts = c.register.Recent(recentAlertsOnDashboard)
	return snap
}

// latestOf returns a copy so callers cannot mutate controller state.
func latestOf(m map[models.Metric]models.Reading, metric models.Metric) *models.Reading {
	r, ok := m[metric]
	if !ok {
		return nil
	}
	return &r
}
