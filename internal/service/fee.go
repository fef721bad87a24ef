package service

import (
	"math"
	"time"

	"smart_parking_lot/internal/config"
)

// Tariff prices a closed session.
type Tariff struct {
	HourlyRate    float64
	MinimumCharge float64
	Currency      string
}

func TariffFromConfig(p config.PricingConfig) Tariff {
	return Tariff{HourlyRate: p.HourlyRate, MinimumCharge: p.MinimumCharge, Currency: p.Currency}
}

// Fee is max(minimum, round(hours*rate, 2)). Clock skew that puts exit
// before entry is charged as a zero-length stay.
func (t Tariff) Fee(entry, exit time.Time) float64 {
	hours := exit.Sub(entry).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Max(t.MinimumCharge, roundCents(hours*t.HourlyRate))
}

// roundCents rounds half-cents to even.
func roundCents(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func minutes(d time.Duration) float64 {
	return roundCents(d.Minutes())
}
