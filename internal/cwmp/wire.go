package cwmp

import "strings"

type informXML struct {
	DeviceID struct {
		Manufacturer string `xml:"Manufacturer"`
		OUI          string `xml:"OUI"`
		ProductClass string `xml:"ProductClass"`
		SerialNumber string `xml:"SerialNumber"`
	} `xml:"DeviceId"`
	Events []struct {
		EventCode  string `xml:"EventCode"`
		CommandKey string `xml:"CommandKey"`
	} `xml:"Event>EventStruct"`
	MaxEnvelopes  int                 `xml:"MaxEnvelopes"`
	CurrentTime   string              `xml:"CurrentTime"`
	RetryCount    int                 `xml:"RetryCount"`
	ParameterList []parameterValueXML `xml:"ParameterList>ParameterValueStruct"`
}

type parameterValueXML struct {
	Name  string `xml:"Name"`
	Value struct {
		Type string `xml:"type,attr"`
		Text string `xml:",chardata"`
	} `xml:"Value"`
}

type getParameterValuesResponseXML struct {
	ParameterList []parameterValueXML `xml:"ParameterList>ParameterValueStruct"`
}

type setParameterValuesResponseXML struct {
	Status int `xml:"Status"`
}

type getParameterNamesResponseXML struct {
	ParameterList []struct {
		Name     string `xml:"Name"`
		Writable bool   `xml:"Writable"`
	} `xml:"ParameterList>ParameterInfoStruct"`
}

type faultXML struct {
	SOAPCode    string `xml:"faultcode"`
	SOAPString  string `xml:"faultstring"`
	FaultCode   int    `xml:"detail>Fault>FaultCode"`
	FaultString string `xml:"detail>Fault>FaultString"`
}

func (raw *informXML) toInform() *Inform {
	inform := &Inform{
		DeviceID: DeviceID{
			Manufacturer: strings.TrimSpace(raw.DeviceID.Manufacturer),
			OUI:          strings.TrimSpace(raw.DeviceID.OUI),
			ProductClass: strings.TrimSpace(raw.DeviceID.ProductClass),
			SerialNumber: strings.TrimSpace(raw.DeviceID.SerialNumber),
		},
		Events:        make([]EventStruct, 0, len(raw.Events)),
		MaxEnvelopes:  raw.MaxEnvelopes,
		CurrentTime:   strings.TrimSpace(raw.CurrentTime),
		RetryCount:    raw.RetryCount,
		ParameterList: toParameterValues(raw.ParameterList),
	}
	for _, ev := range raw.Events {
		inform.Events = append(inform.Events, EventStruct{
			EventCode:  strings.TrimSpace(ev.EventCode),
			CommandKey: ev.CommandKey,
		})
	}
	return inform
}

// Values are kept verbatim; only names are trimmed.
func toParameterValues(raw []parameterValueXML) []ParameterValue {
	out := make([]ParameterValue, 0, len(raw))
	for _, p := range raw {
		out = append(out, ParameterValue{
			Name:  strings.TrimSpace(p.Name),
			Value: p.Value.Text,
			Type:  p.Value.Type,
		})
	}
	return out
}
