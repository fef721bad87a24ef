package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"smart_parking_lot/internal/domain"
)

// ParkingInstruments are the counters recorded by the parking façade.
type ParkingInstruments struct {
	entries    metric.Int64Counter
	exits      metric.Int64Counter
	rejections metric.Int64Counter
	fees       metric.Float64Histogram
	duration   metric.Float64Histogram
}

func NewParkingInstruments(meter metric.Meter) (*ParkingInstruments, error) {
	entries, err := meter.Int64Counter("parking_entries_total",
		metric.WithDescription("Vehicles assigned a spot"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}
	exits, err := meter.Int64Counter("parking_exits_total",
		metric.WithDescription("Vehicles that left the lot"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("parking_rejections_total",
		metric.WithDescription("Entries refused, by reason"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}
	fees, err := meter.Float64Histogram("parking_fee_amount",
		metric.WithDescription("Fee charged per session"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("parking_session_duration_minutes",
		metric.WithDescription("Length of closed sessions"),
		metric.WithUnit("min"))
	if err != nil {
		return nil, err
	}
	return &ParkingInstruments{
		entries:    entries,
		exits:      exits,
		rejections: rejections,
		fees:       fees,
		duration:   duration,
	}, nil
}

func (m *ParkingInstruments) RecordEntry(ctx context.Context, spotType domain.SpotType) {
	if m == nil {
		return
	}
	m.entries.Add(ctx, 1, metric.WithAttributes(attribute.String("spot.type", string(spotType))))
}

func (m *ParkingInstruments) RecordExit(ctx context.Context, spotType domain.SpotType, minutes, fee float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("spot.type", string(spotType)))
	m.exits.Add(ctx, 1, attrs)
	m.fees.Record(ctx, fee, attrs)
	m.duration.Record(ctx, minutes, attrs)
}

func (m *ParkingInstruments) RecordRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
