package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"smart_parking_lot/internal/domain"
)

// OccupancySource is read on every scrape.
type OccupancySource interface {
	GetOccupancyStatus() domain.OccupancyStatus
}

// LotCollector exposes live spot counts per type to Prometheus.
type LotCollector struct {
	source   OccupancySource
	total    *prometheus.Desc
	occupied *prometheus.Desc
	rate     *prometheus.Desc
}

func NewLotCollector(lotName string, source OccupancySource) *LotCollector {
	constLabels := prometheus.Labels{"lot": lotName}
	return &LotCollector{
		source: source,
		total: prometheus.NewDesc("parking_spots_total",
			"Number of spots in the lot.", []string{"type"}, constLabels),
		occupied: prometheus.NewDesc("parking_spots_occupied",
			"Number of occupied spots.", []string{"type"}, constLabels),
		rate: prometheus.NewDesc("parking_occupancy_rate_percent",
			"Occupied share of the lot.", nil, constLabels),
	}
}

func (c *LotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.occupied
	ch <- c.rate
}

func (c *LotCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.source.GetOccupancyStatus()
	for _, t := range domain.SpotTypes {
		byType := status.ByType[t]
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(byType.Total), string(t))
		ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(byType.Occupied), string(t))
	}
	ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, status.OccupancyRate)
}
