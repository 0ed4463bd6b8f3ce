// Package session holds the bridge's domain model: the SessionEvent published
// for every accepted Inform, the transformation that derives it from a parsed
// envelope, and the policy messages flowing back from the control plane.
package session

import (
	"fmt"
	"strings"
)

// EventMessageSchema names the payload schema in outbound message metadata.
const EventMessageSchema = "SessionEvent"

type SessionType int

const (
	SessionTypeUnknown SessionType = iota
	SessionTypeInform
)

func (t SessionType) String() string {
	switch t {
	case SessionTypeInform:
		return "Inform"
	default:
		return "Unknown"
	}
}

func (t SessionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText maps anything unrecognised to SessionTypeUnknown.
func (t *SessionType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Inform":
		*t = SessionTypeInform
	default:
		*t = SessionTypeUnknown
	}
	return nil
}

type SessionState int

const (
	SessionStateUnknown SessionState = iota
	SessionStateInit
)

func (s SessionState) String() string {
	switch s {
	case SessionStateInit:
		return "Init"
	default:
		return "Unknown"
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText maps anything unrecognised to SessionStateUnknown.
func (s *SessionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Init":
		*s = SessionStateInit
	default:
		*s = SessionStateUnknown
	}
	return nil
}

// Event is one Inform event, e.g. {"0 BOOTSTRAP", ""}.
type Event struct {
	EventCode  string `json:"event_code"`
	CommandKey string `json:"command_key"`
}

type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DeviceIdentity is the structured form of a device id.
type DeviceIdentity struct {
	Manufacturer string
	OUI          string
	SerialNumber string
	ProductClass string
}

// Key joins the four fields with "-" in the order manufacturer, OUI, serial
// number, product class. The fields are not escaped, so two identities whose
// fields contain "-" can produce the same key; compare DeviceIdentity values
// when an exact match matters.
func (d DeviceIdentity) Key() string {
	return strings.Join([]string{d.Manufacturer, d.OUI, d.SerialNumber, d.ProductClass}, "-")
}

func (d DeviceIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", d.Manufacturer, d.OUI, d.SerialNumber, d.ProductClass)
}

// SessionEvent is published once per accepted Inform.
type SessionEvent struct {
	InstanceID   string       `json:"acs_instance_id"`
	SessionID    string       `json:"session_id"`
	SessionType  SessionType  `json:"session_type"`
	SessionState SessionState `json:"session_state"`
	DeviceID     string       `json:"device_id"`
	Events       []Event      `json:"events"`
	Parameters   []Parameter  `json:"parameters"`

	// Identity is kept in-process only.
	Identity DeviceIdentity `json:"-"`
}

// Key is the broker partition key.
func (e SessionEvent) Key() string {
	return e.SessionID
}
