package telemetry

import (
	"encoding/json"
)

// Wire message types exchanged with the dispatch backend.
const (
	TypeRegister             = "register"
	TypeLocation             = "location"
	TypeRegisterConfirmation = "register_confirmation"
	TypeError                = "ERROR"
	TypeDriverDisconnect     = "DRIVER_DISCONNECT"
)

const roleDriver = "driver"

// Envelope is the discriminated inbound frame; Payload stays raw until
// the type is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type registerMessage struct {
	Type     string `json:"type"`
	DriverID string `json:"driverId"`
	Role     string `json:"role"`
}

type locationMessage struct {
	Type     string          `json:"type"`
	DriverID string          `json:"driverId"`
	Role     string          `json:"role"`
	Location locationPayload `json:"location"`
}

type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

type disconnectMessage struct {
	Type    string            `json:"type"`
	Payload disconnectPayload `json:"payload"`
}

type disconnectPayload struct {
	DriverID  string `json:"driverId"`
	CabNumber string `json:"cabNumber"`
}

type errorPayload struct {
	Message string `json:"message"`
}
