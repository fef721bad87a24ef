package domain

import "time"

// PlateCandidate is one plate read returned by a detector. Confidence is in [0,1].
type PlateCandidate struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
}

type DetectionSource string

const (
	SourceUpload DetectionSource = "upload"
	SourceCamera DetectionSource = "camera"
	SourceGate   DetectionSource = "gate"
)

// DetectionRecord logs a successful plate read.
type DetectionRecord struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	LicensePlate string          `json:"license_plate"`
	Confidence   float64         `json:"confidence"`
	Source       DetectionSource `json:"source"`
	ImageRef     string          `json:"image_ref,omitempty"`
}

// LPRRequestDTO carries an uploaded image as base64.
type LPRRequestDTO struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	ImageRef    string `json:"image_ref,omitempty"`
}

type LPRResponseDTO struct {
	DetectedPlate string  `json:"detected_plate"`
	Confidence    float64 `json:"confidence,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// LPREntryDTO detects the plate from the image and falls back to
// ManualPlate when nothing usable was read.
type LPREntryDTO struct {
	ImageBase64    string `json:"image_base64"`
	ManualPlate    string `json:"manual_plate"`
	PreferredType  string `json:"preferred_type"`
	HandicapPermit bool   `json:"handicap_permit"`
	Notes          string `json:"notes"`
}

type LPREntryResponseDTO struct {
	Detection   LPRResponseDTO `json:"detection"`
	ManualEntry bool           `json:"manual_entry"`
	Entry       *EntryResult   `json:"entry"`
}
