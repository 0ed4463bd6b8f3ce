package session

import (
	"fmt"
	"strings"

	"github.com/jdalberg/acs/internal/cwmp"
	acserrors "github.com/jdalberg/acs/internal/runtime/errors"
)

// MultipleInformPolicy decides how envelopes carrying several Informs are
// treated.
type MultipleInformPolicy int

const (
	// UseFirstInform transforms the first Inform and ignores the rest.
	UseFirstInform MultipleInformPolicy = iota
	// RejectMultipleInforms fails with ErrMultipleInforms.
	RejectMultipleInforms
)

// ParseMultipleInformPolicy accepts "first" and "reject".
func ParseMultipleInformPolicy(s string) (MultipleInformPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return UseFirstInform, nil
	case "reject":
		return RejectMultipleInforms, nil
	default:
		return UseFirstInform, fmt.Errorf("unknown multiple inform policy %q", s)
	}
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

func WithMultipleInformPolicy(p MultipleInformPolicy) TransformerOption {
	return func(t *Transformer) {
		t.multiple = p
	}
}

// WithoutDeviceIDValidation accepts blank identity fields.
func WithoutDeviceIDValidation() TransformerOption {
	return func(t *Transformer) {
		t.validate = false
	}
}

// Transformer turns parsed envelopes into SessionEvents. It holds no mutable
// state and is safe for concurrent use.
type Transformer struct {
	instanceID string
	multiple   MultipleInformPolicy
	validate   bool
}

// NewTransformer binds the transformer to the bridge instance identity.
func NewTransformer(instanceID string, opts ...TransformerOption) (*Transformer, error) {
	if strings.TrimSpace(instanceID) == "" {
		return nil, acserrors.ErrInstanceIDRequired
	}
	t := &Transformer{instanceID: instanceID, validate: true}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Transformer) InstanceID() string {
	return t.instanceID
}

// Transform derives the SessionEvent for env. It fails with
// ErrNoInformPayload when the body holds no Inform; it never returns a
// partially populated event.
func (t *Transformer) Transform(env *cwmp.Envelope) (SessionEvent, error) {
	if env == nil {
		return SessionEvent{}, acserrors.ErrEnvelopeRequired
	}

	informs := env.Informs()
	switch {
	case len(informs) == 0:
		return SessionEvent{}, acserrors.ErrNoInformPayload
	case len(informs) > 1 && t.multiple == RejectMultipleInforms:
		return SessionEvent{}, fmt.Errorf("%w: found %d", acserrors.ErrMultipleInforms, len(informs))
	}
	inform := informs[0]

	identity := DeviceIdentity{
		Manufacturer: inform.DeviceID.Manufacturer,
		OUI:          inform.DeviceID.OUI,
		SerialNumber: inform.DeviceID.SerialNumber,
		ProductClass: inform.DeviceID.ProductClass,
	}
	if t.validate {
		if err := validateIdentity(identity); err != nil {
			return SessionEvent{}, err
		}
	}

	key := identity.Key()
	return SessionEvent{
		InstanceID:   t.instanceID,
		SessionID:    key,
		SessionType:  SessionTypeInform,
		SessionState: SessionStateInit,
		DeviceID:     key,
		Events:       events(inform.Events),
		Parameters:   parameters(inform.ParameterList),
		Identity:     identity,
	}, nil
}

func validateIdentity(id DeviceIdentity) error {
	var missing []string
	if strings.TrimSpace(id.Manufacturer) == "" {
		missing = append(missing, "Manufacturer")
	}
	if strings.TrimSpace(id.OUI) == "" {
		missing = append(missing, "OUI")
	}
	if strings.TrimSpace(id.SerialNumber) == "" {
		missing = append(missing, "SerialNumber")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: blank %s", acserrors.ErrInvalidDeviceID, strings.Join(missing, ", "))
	}
	return nil
}

func events(in []cwmp.EventStruct) []Event {
	out := make([]Event, 0, len(in))
	for _, ev := range in {
		out = append(out, Event{EventCode: ev.EventCode, CommandKey: ev.CommandKey})
	}
	return out
}

func parameters(in []cwmp.ParameterValue) []Parameter {
	out := make([]Parameter, 0, len(in))
	for _, p := range in {
		out = append(out, Parameter{Name: p.Name, Value: p.Value})
	}
	return out
}
