package service

import (
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
)

// seriesCapacity is how many points per metric the charts keep.
const seriesCapacity = 20

// seriesBuffer keeps the last seriesCapacity points per metric, oldest first.
// Callers synchronize access.
type seriesBuffer struct {
	capacity int
	points   map[models.Metric][]models.SeriesPoint
}

func newSeriesBuffer(capacity int) *seriesBuffer {
	if capacity <= 0 {
		capacity = seriesCapacity
	}
	return &seriesBuffer{capacity: capacity, points: make(map[models.Metric][]models.SeriesPoint)}
}

func (b *seriesBuffer) push(r models.Reading) {
	pts := append(b.points[r.Metric], models.SeriesPoint{At: r.Timestamp, Value: r.Value})
	if over := len(pts) - b.capacity; over > 0 {
		pts = append(pts[:0:0], pts[over:]...)
	}
	b.points[r.Metric] = pts
}

// snapshot returns a deep copy.
func (b *seriesBuffer) snapshot() map[models.Metric][]models.SeriesPoint {
	out := make(map[models.Metric][]models.SeriesPoint, len(b.points))
	for m, pts := range b.points {
		out[m] = append([]models.SeriesPoint(nil), pts...)
	}
	return out
}
