package session

import (
	"fmt"
	"strings"

	"github.com/jdalberg/acs/internal/cwmp"
	acserrors "github.com/jdalberg/acs/internal/runtime/errors"
	"github.com/jdalberg/acs/internal/runtime/jsoncodec"
)

// PolicyType names the RPC a policy asks the bridge to run on a device.
type PolicyType string

const (
	PolicyGetParameterValues PolicyType = "GetParameterValues"
	PolicySetParameterValues PolicyType = "SetParameterValues"
	PolicyGetParameterNames  PolicyType = "GetParameterNames"
)

func (p PolicyType) Valid() bool {
	switch p {
	case PolicyGetParameterValues, PolicySetParameterValues, PolicyGetParameterNames:
		return true
	}
	return false
}

// ExpectedResponse is the device reply method that completes this policy.
func (p PolicyType) ExpectedResponse() string {
	switch p {
	case PolicyGetParameterValues:
		return cwmp.MethodGetParameterValuesResponse
	case PolicySetParameterValues:
		return cwmp.MethodSetParameterValuesResponse
	case PolicyGetParameterNames:
		return cwmp.MethodGetParameterNamesResponse
	}
	return ""
}

// PolicyMessage is a control-plane instruction addressed to one device
// session.
type PolicyMessage struct {
	InstanceID   string       `json:"acs_instance_id"`
	SessionID    string       `json:"session_id"`
	DeviceID     string       `json:"device_id"`
	SessionType  SessionType  `json:"session_type"`
	SessionState SessionState `json:"session_state"`
	PolicyType   PolicyType   `json:"policy_type"`

	// GetParameterValues
	ParameterNames []string `json:"parameter_names,omitempty"`
	// SetParameterValues
	ParameterValues []Parameter `json:"parameter_values,omitempty"`
	ParameterKey    string      `json:"parameter_key,omitempty"`
	// GetParameterNames; an empty path addresses the whole data model.
	ParameterPath string `json:"parameter_path,omitempty"`
	NextLevel     bool   `json:"next_level,omitempty"`
}

// Validate checks the fields the policy type depends on.
func (m PolicyMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", acserrors.ErrInvalidPolicy)
	}
	if !m.PolicyType.Valid() {
		return fmt.Errorf("%w: %q", acserrors.ErrUnknownPolicyType, m.PolicyType)
	}
	switch m.PolicyType {
	case PolicyGetParameterValues:
		if len(m.ParameterNames) == 0 {
			return fmt.Errorf("%w: parameter_names is required for %s", acserrors.ErrInvalidPolicy, m.PolicyType)
		}
	case PolicySetParameterValues:
		if len(m.ParameterValues) == 0 {
			return fmt.Errorf("%w: parameter_values is required for %s", acserrors.ErrInvalidPolicy, m.PolicyType)
		}
		for _, p := range m.ParameterValues {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("%w: parameter_values entry without a name", acserrors.ErrInvalidPolicy)
			}
		}
	}
	return nil
}

// DecodePolicyMessage decodes and validates a policy payload.
func DecodePolicyMessage(payload []byte) (PolicyMessage, error) {
	var msg PolicyMessage
	if err := jsoncodec.Unmarshal(payload, &msg); err != nil {
		return PolicyMessage{}, fmt.Errorf("%w: %v", acserrors.ErrInvalidPolicy, err)
	}
	if err := msg.Validate(); err != nil {
		return PolicyMessage{}, err
	}
	return msg, nil
}

type ParameterInfo struct {
	Name     string `json:"name"`
	Writable bool   `json:"writable"`
}

// Fault is a CWMP fault returned by the device.
type Fault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PolicyMessageResponse is the device-side result of a PolicyMessage.
type PolicyMessageResponse struct {
	InstanceID   string       `json:"acs_instance_id"`
	SessionID    string       `json:"session_id"`
	DeviceID     string       `json:"device_id"`
	SessionType  SessionType  `json:"session_type"`
	SessionState SessionState `json:"session_state"`
	PolicyType   PolicyType   `json:"policy_type"`

	Parameters    []Parameter     `json:"parameters,omitempty"`
	ParameterInfo []ParameterInfo `json:"parameter_info,omitempty"`
	// Status is set for SetParameterValues: 0 applied, 1 applied after reboot.
	Status *int   `json:"status,omitempty"`
	Fault  *Fault `json:"fault,omitempty"`
}

// NewPolicyMessageResponse correlates a device reply with the policy that
// triggered it. A Fault is accepted for every policy type; any other reply
// must match the policy's RPC.
func NewPolicyMessageResponse(msg PolicyMessage, reply cwmp.BodyElement) (PolicyMessageResponse, error) {
	resp := PolicyMessageResponse{
		InstanceID:   msg.InstanceID,
		SessionID:    msg.SessionID,
		DeviceID:     msg.DeviceID,
		SessionType:  msg.SessionType,
		SessionState: msg.SessionState,
		PolicyType:   msg.PolicyType,
	}
	if reply == nil {
		return PolicyMessageResponse{}, fmt.Errorf("%w: no reply", acserrors.ErrUnsupportedResponse)
	}

	if fault, ok := reply.(*cwmp.Fault); ok {
		resp.Fault = &Fault{Code: fault.FaultCode, Message: fault.FaultString}
		return resp, nil
	}
	if reply.Method() != msg.PolicyType.ExpectedResponse() {
		return PolicyMessageResponse{}, fmt.Errorf("%w: %s does not answer %s",
			acserrors.ErrUnsupportedResponse, reply.Method(), msg.PolicyType)
	}

	switch r := reply.(type) {
	case *cwmp.GetParameterValuesResponse:
		resp.Parameters = make([]Parameter, 0, len(r.ParameterList))
		for _, p := range r.ParameterList {
			resp.Parameters = append(resp.Parameters, Parameter{Name: p.Name, Value: p.Value})
		}
	case *cwmp.SetParameterValuesResponse:
		status := r.Status
		resp.Status = &status
	case *cwmp.GetParameterNamesResponse:
		resp.ParameterInfo = make([]ParameterInfo, 0, len(r.ParameterList))
		for _, p := range r.ParameterList {
			resp.ParameterInfo = append(resp.ParameterInfo, ParameterInfo{Name: p.Name, Writable: p.Writable})
		}
	default:
		return PolicyMessageResponse{}, fmt.Errorf("%w: %s", acserrors.ErrUnsupportedResponse, reply.Method())
	}
	return resp, nil
}
