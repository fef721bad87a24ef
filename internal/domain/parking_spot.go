package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

var ErrInvalidSpotType = errors.New("invalid spot type")

type SpotType string

const (
	SpotStandard SpotType = "standard"
	SpotHandicap SpotType = "handicap"
	SpotPremium  SpotType = "premium"
)

// SpotTypes is the reporting order used by status and statistics breakdowns.
var SpotTypes = []SpotType{SpotStandard, SpotHandicap, SpotPremium}

func (t SpotType) Valid() bool {
	switch t {
	case SpotStandard, SpotHandicap, SpotPremium:
		return true
	}
	return false
}

func ParseSpotType(s string) (SpotType, error) {
	t := SpotType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w %q, expected standard, handicap or premium", ErrInvalidSpotType, s)
	}
	return t, nil
}

type SpotSide string

const (
	SideNorth SpotSide = "north"
	SideSouth SpotSide = "south"
)

// VehicleInfo describes the vehicle parked in a spot. A copy also lives in
// the history entry of the session.
type VehicleInfo struct {
	LicensePlate   string    `json:"license_plate"`
	EntryTime      time.Time `json:"entry_time"`
	PreferredType  SpotType  `json:"preferred_type"`
	HandicapPermit bool      `json:"handicap_permit"`
	Notes          string    `json:"notes,omitempty"`
}

// NormalizePlate trims and uppercases a plate typed by an operator.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

type ParkingSpot struct {
	ID        int          `json:"id"`
	Row       int          `json:"row"`
	Position  int          `json:"position"`
	Side      SpotSide     `json:"side"`
	Type      SpotType     `json:"type"`
	Occupied  bool         `json:"occupied"`
	Vehicle   *VehicleInfo `json:"vehicle_info"`
	EntryTime null.Time    `json:"entry_time"`
}

// Clone returns a copy that shares no memory with s.
func (s ParkingSpot) Clone() ParkingSpot {
	if s.Vehicle != nil {
		v := *s.Vehicle
		s.Vehicle = &v
	}
	return s
}

// Consistent reports whether occupancy, vehicle and entry time agree.
func (s ParkingSpot) Consistent() bool {
	return s.Occupied == (s.Vehicle != nil) && s.Occupied == s.EntryTime.Valid
}

type TypeOccupancy struct {
	Total    int `json:"total"`
	Occupied int `json:"occupied"`
}

type OccupancyStatus struct {
	TotalSpots     int                        `json:"total_spots"`
	OccupiedSpots  int                        `json:"occupied_spots"`
	AvailableSpots int                        `json:"available_spots"`
	OccupancyRate  float64                    `json:"occupancy_rate"`
	ByType         map[SpotType]TypeOccupancy `json:"by_type"`
}

// CurrentVehicle is a row of the "vehicles currently parked" view.
type CurrentVehicle struct {
	SpotID         int       `json:"spot_id"`
	SpotType       SpotType  `json:"spot_type"`
	LicensePlate   string    `json:"license_plate"`
	EntryTime      time.Time `json:"entry_time"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
	LongStay       bool      `json:"long_stay"`
	Notes          string    `json:"notes,omitempty"`
}
