package domain

import "time"

type LotEventType string

const (
	LotEventVehicleEntered LotEventType = "vehicle_entered"
	LotEventVehicleExited  LotEventType = "vehicle_exited"
	LotEventEntryRejected  LotEventType = "entry_rejected"
	LotEventNearlyFull     LotEventType = "lot_nearly_full"
	LotEventReset          LotEventType = "lot_reset"
	LotEventHistoryCleared LotEventType = "history_cleared"
)

// LotEventNotification is pushed to dashboards over the WebSocket.
type LotEventNotification struct {
	EventID       string       `json:"event_id"`
	LotName       string       `json:"lot_name"`
	EventType     LotEventType `json:"event_type"`
	Timestamp     time.Time    `json:"timestamp"`
	SpotID        int          `json:"spot_id,omitempty"`
	SpotType      SpotType     `json:"spot_type,omitempty"`
	LicensePlate  string       `json:"license_plate,omitempty"`
	OccupancyRate float64      `json:"occupancy_rate"`
	Fee           float64      `json:"fee,omitempty"`
	Message       string       `json:"message,omitempty"`
}
