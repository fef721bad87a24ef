package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

// HistoryEntry is one parking session. ExitTime stays invalid while the
// vehicle is still parked.
type HistoryEntry struct {
	SessionID string      `json:"session_id"`
	SpotID    int         `json:"spot_id"`
	SpotType  SpotType    `json:"spot_type"`
	Vehicle   VehicleInfo `json:"vehicle_info"`
	EntryTime time.Time   `json:"entry_time"`
	ExitTime  null.Time   `json:"exit_time"`
}

func (e HistoryEntry) Open() bool {
	return !e.ExitTime.Valid
}

// Duration is only defined for closed sessions.
func (e HistoryEntry) Duration() (time.Duration, bool) {
	if !e.ExitTime.Valid {
		return 0, false
	}
	return e.ExitTime.Time.Sub(e.EntryTime), true
}

type HistoryStatus string

const (
	HistoryParked HistoryStatus = "parked"
	HistoryExited HistoryStatus = "exited"
)

var ErrInvalidHistoryStatus = errors.New("invalid history status")

func ParseHistoryStatus(s string) (HistoryStatus, error) {
	st := HistoryStatus(strings.ToLower(strings.TrimSpace(s)))
	if st != HistoryParked && st != HistoryExited {
		return "", fmt.Errorf("%w %q, expected parked or exited", ErrInvalidHistoryStatus, s)
	}
	return st, nil
}

func (e HistoryEntry) Status() HistoryStatus {
	if e.Open() {
		return HistoryParked
	}
	return HistoryExited
}

var ErrInvalidPeriod = errors.New("invalid period")

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod accepts day, week, month and all. An empty string means day.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("%w %q, expected day, week, month or all", ErrInvalidPeriod, s)
}

// Cutoff returns the earliest entry time included in the period window.
func (p Period) Cutoff(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.Add(-24 * time.Hour)
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonth:
		return now.Add(-30 * 24 * time.Hour)
	}
	return time.Unix(0, 0).UTC()
}

// HistoryFilter narrows a history listing. Nil fields do not filter.
type HistoryFilter struct {
	Type   *SpotType
	Status *HistoryStatus
	Period Period
}

// HistoryQueryDTO is the raw query string of a history listing.
type HistoryQueryDTO struct {
	Type   string `form:"type"`
	Status string `form:"status"`
	Period string `form:"period"`
}

type TypeStatistics struct {
	Count              int     `json:"count"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

type Statistics struct {
	Period             Period                      `json:"period"`
	TotalVehicles      int                         `json:"total_vehicles"`
	AvgDurationMinutes null.Float                  `json:"avg_duration_minutes"`
	ByType             map[SpotType]TypeStatistics `json:"by_type"`
}

type TypeRevenue struct {
	Revenue            float64 `json:"revenue"`
	ExitedCount        int     `json:"exited_count"`
	AvgFee             float64 `json:"avg_fee"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

type RevenueReport struct {
	Period       Period                   `json:"period"`
	Currency     string                   `json:"currency"`
	TotalRevenue float64                  `json:"total_revenue"`
	ExitedCount  int                      `json:"exited_count"`
	ByType       map[SpotType]TypeRevenue `json:"by_type"`
}

type VehicleEntryDTO struct {
	LicensePlate   string `json:"license_plate" binding:"required"`
	PreferredType  string `json:"preferred_type"`
	HandicapPermit bool   `json:"handicap_permit"`
	Notes          string `json:"notes"`
}

// VehicleExitDTO identifies the session to close by spot or by plate.
type VehicleExitDTO struct {
	SpotID       *int   `json:"spot_id"`
	LicensePlate string `json:"license_plate"`
}

type EntryResult struct {
	SpotID        int          `json:"spot_id"`
	SpotType      SpotType     `json:"spot_type"`
	Session       HistoryEntry `json:"session"`
	OccupancyRate float64      `json:"occupancy_rate"`
}

type ExitReceipt struct {
	SessionID       string    `json:"session_id,omitempty"`
	SpotID          int       `json:"spot_id"`
	SpotType        SpotType  `json:"spot_type"`
	LicensePlate    string    `json:"license_plate"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	Fee             float64   `json:"fee"`
	Currency        string    `json:"currency"`
}
