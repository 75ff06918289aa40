package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published to the bus.
const (
	EventScanAccepted = "scan_accepted"
	EventScanRejected = "scan_rejected"
	EventQuarantined  = "file_quarantined"
	EventVaultSwept   = "vault_swept"
)

// ScanEvent is the structure published to the event bus for every verdict and
// quarantine incident. It carries enough detail for an external monitoring
// process without carrying the file bytes themselves.
type ScanEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Reason    ReasonCode             `json:"reason,omitempty"`
	Risk      RiskLevel              `json:"risk"`
	Detector  string                 `json:"detector,omitempty"`
	Filename  string                 `json:"filename,omitempty"`
	SourceIP  string                 `json:"source_ip,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewScanEvent creates a ScanEvent with a generated ID and current timestamp.
func NewScanEvent(eventType string) *ScanEvent {
	return &ScanEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Details:   make(map[string]interface{}),
	}
}

// Marshal serializes the event to JSON.
func (e *ScanEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalScanEvent deserializes a ScanEvent from JSON.
func UnmarshalScanEvent(data []byte) (*ScanEvent, error) {
	var event ScanEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
