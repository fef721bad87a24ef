package service

import (
	"time"

	"smart_parking_lot/internal/telemetry"
)

// Option customizes the stores and the ParkingService.
type Option func(*options)

type options struct {
	now         func() time.Time
	notifier    LotNotifier
	instruments *telemetry.ParkingInstruments
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNotifier sends lot events to n.
func WithNotifier(n LotNotifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithInstruments(m *telemetry.ParkingInstruments) Option {
	return func(o *options) { o.instruments = m }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
