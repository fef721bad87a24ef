package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTariffFee(t *testing.T) {
	entry := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		tariff Tariff
		stay   time.Duration
		want   float64
	}{
		{"short stay pays the minimum", testTariff, 5 * time.Minute, 100},
		{"exactly the minimum", testTariff, 30 * time.Minute, 100},
		{"ninety minutes", testTariff, 90 * time.Minute, 300},
		{"rounded to cents", testTariff, 130 * time.Minute, 433.33},
		{"exit before entry", testTariff, -time.Hour, 100},
		{"no minimum", Tariff{HourlyRate: 10}, time.Minute, 0.17},
		{"zero length without minimum", Tariff{HourlyRate: 10}, 0, 0},
		{"half cent rounds down to even", Tariff{HourlyRate: 0.5}, 15 * time.Minute, 0.12},
		{"half cent rounds up to even", Tariff{HourlyRate: 1.5}, 15 * time.Minute, 0.38},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.tariff.Fee(entry, entry.Add(tt.stay)), 1e-9)
		})
	}
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, 90.0, minutes(90*time.Minute))
	assert.Equal(t, 0.5, minutes(30*time.Second))
	assert.Equal(t, 1.33, minutes(80*time.Second))
}
