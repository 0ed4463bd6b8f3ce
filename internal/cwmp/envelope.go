// Package cwmp decodes the SOAP envelopes CPEs post to the ACS.
//
// Only the RPCs the bridge reacts to are modelled: the Inform a device opens a
// session with, and the responses it returns to GetParameterValues,
// SetParameterValues and GetParameterNames. Anything else is surfaced as
// Unknown so callers can decide how strict to be.
package cwmp

// Method names of the modelled body elements.
const (
	MethodInform                     = "Inform"
	MethodGetParameterValuesResponse = "GetParameterValuesResponse"
	MethodSetParameterValuesResponse = "SetParameterValuesResponse"
	MethodGetParameterNamesResponse  = "GetParameterNamesResponse"
	MethodFault                      = "Fault"
)

// Envelope is a decoded SOAP envelope.
type Envelope struct {
	// ID is the cwmp:ID header used to correlate requests and responses.
	ID string
	// CWMPVersion is taken from the cwmp namespace, e.g. "1-0" for
	// urn:dslforum-org:cwmp-1-0. Empty when no cwmp namespace is used.
	CWMPVersion string
	// Body holds the body elements in document order.
	Body []BodyElement
}

// BodyElement is one child of the SOAP Body.
type BodyElement interface {
	Method() string
}

// IsInform reports whether the envelope opens with an Inform RPC.
func (e *Envelope) IsInform() bool {
	if e == nil || len(e.Body) == 0 {
		return false
	}
	_, ok := e.Body[0].(*Inform)
	return ok
}

// Method names the first body element, or "" for an empty body.
func (e *Envelope) Method() string {
	if e == nil || len(e.Body) == 0 {
		return ""
	}
	return e.Body[0].Method()
}

// Informs returns every Inform in the body, in document order.
func (e *Envelope) Informs() []*Inform {
	if e == nil {
		return nil
	}
	var informs []*Inform
	for _, el := range e.Body {
		if inform, ok := el.(*Inform); ok {
			informs = append(informs, inform)
		}
	}
	return informs
}

// DeviceID identifies the CPE.
type DeviceID struct {
	Manufacturer string
	OUI          string
	ProductClass string
	SerialNumber string
}

// EventStruct is one entry of the Inform event list, e.g. "0 BOOTSTRAP".
type EventStruct struct {
	EventCode  string
	CommandKey string
}

// ParameterValue is a name/value pair with its declared xsi:type.
type ParameterValue struct {
	Name  string
	Value string
	Type  string
}

// ParameterInfo is one entry of a GetParameterNamesResponse.
type ParameterInfo struct {
	Name     string
	Writable bool
}

// Inform is the RPC a CPE opens every session with.
type Inform struct {
	DeviceID      DeviceID
	Events        []EventStruct
	MaxEnvelopes  int
	CurrentTime   string
	RetryCount    int
	ParameterList []ParameterValue
}

func (*Inform) Method() string { return MethodInform }

type GetParameterValuesResponse struct {
	ParameterList []ParameterValue
}

func (*GetParameterValuesResponse) Method() string { return MethodGetParameterValuesResponse }

type SetParameterValuesResponse struct {
	// Status is 0 when the change applied, 1 when it needs a reboot.
	Status int
}

func (*SetParameterValuesResponse) Method() string { return MethodSetParameterValuesResponse }

type GetParameterNamesResponse struct {
	ParameterList []ParameterInfo
}

func (*GetParameterNamesResponse) Method() string { return MethodGetParameterNamesResponse }

// Fault carries both the SOAP fault and the embedded CWMP fault detail.
type Fault struct {
	SOAPCode    string
	SOAPString  string
	FaultCode   int
	FaultString string
}

func (*Fault) Method() string { return MethodFault }

// Unknown stands in for any body element the bridge does not model.
type Unknown struct {
	Name string
}

func (u *Unknown) Method() string { return u.Name }
