package domain

import "time"

type GateDirection string

const (
	GateDirectionEntry GateDirection = "entry"
	GateDirectionExit  GateDirection = "exit"
)

// GateCameraEvent is the SQS message body sent when a gate camera sees a vehicle.
// Plate may be empty when only an image was captured.
type GateCameraEvent struct {
	EventID        string        `json:"event_id"`
	GateID         string        `json:"gate_id"`
	Direction      GateDirection `json:"direction"`
	Plate          string        `json:"plate,omitempty"`
	Confidence     float64       `json:"confidence,omitempty"`
	ImageBase64    string        `json:"image_base64,omitempty"`
	PreferredType  string        `json:"preferred_type,omitempty"`
	HandicapPermit bool          `json:"handicap_permit,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// BarrierCommand values understood by the gate controllers.
const (
	BarrierOpen  = "open"
	BarrierClose = "close"
)

// BarrierCommandPayload is published to the gate controller's MQTT topic.
type BarrierCommandPayload struct {
	Command   string `json:"command"`
	RequestID string `json:"request_id"`
	GateID    string `json:"gate_id"`
	Plate     string `json:"plate,omitempty"`
	SpotID    int    `json:"spot_id,omitempty"`
}

type BarrierCommandDTO struct {
	Command string `json:"command" binding:"required,oneof=open close"`
}
