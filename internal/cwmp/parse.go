package cwmp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

var (
	ErrEmptyInput  = errors.New("empty input")
	ErrNotEnvelope = errors.New("root element is not a SOAP Envelope")
	ErrMissingBody = errors.New("envelope has no Body")
	ErrTrailing    = errors.New("content after the Envelope")
)

const (
	cwmpNamespace   = "urn:dslforum-org:cwmp-"
	envelopeElement = "Envelope"
)

// ParseError reports why an envelope could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cwmp: parse envelope: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseBytes decodes a SOAP envelope.
func ParseBytes(b []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, &ParseError{Err: ErrEmptyInput}
	}
	env, err := parse(xml.NewDecoder(bytes.NewReader(b)))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return env, nil
}

func parse(d *xml.Decoder) (*Envelope, error) {
	d.CharsetReader = charset.NewReaderLabel

	root, err := rootElement(d)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != envelopeElement {
		return nil, fmt.Errorf("%w: got %q", ErrNotEnvelope, root.Name.Local)
	}

	env := &Envelope{}
	env.noteNamespace(root.Name)
	sawBody := false

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Header":
				if err := env.decodeHeader(d); err != nil {
					return nil, err
				}
			case "Body":
				sawBody = true
				if err := env.decodeBody(d); err != nil {
					return nil, err
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if !sawBody {
				return nil, ErrMissingBody
			}
			if err := expectEOF(d); err != nil {
				return nil, err
			}
			return env, nil
		}
	}
}

// expectEOF accepts only whitespace, comments and processing instructions
// after the root element.
func expectEOF(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTrailing, err)
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return ErrTrailing
			}
		default:
			return ErrTrailing
		}
	}
}

func rootElement(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, ErrNotEnvelope
			}
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return xml.StartElement{}, ErrNotEnvelope
			}
		}
	}
}

func (e *Envelope) noteNamespace(name xml.Name) {
	if e.CWMPVersion == "" && strings.HasPrefix(name.Space, cwmpNamespace) {
		e.CWMPVersion = strings.TrimPrefix(name.Space, cwmpNamespace)
	}
}

func (e *Envelope) decodeHeader(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e.noteNamespace(t.Name)
			if t.Name.Local == "ID" {
				var id string
				if err := d.DecodeElement(&id, &t); err != nil {
					return err
				}
				e.ID = strings.TrimSpace(id)
				continue
			}
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (e *Envelope) decodeBody(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e.noteNamespace(t.Name)
			el, err := decodeBodyElement(d, t)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", t.Name.Local, err)
			}
			e.Body = append(e.Body, el)
		case xml.EndElement:
			return nil
		}
	}
}

func decodeBodyElement(d *xml.Decoder, start xml.StartElement) (BodyElement, error) {
	switch start.Name.Local {
	case MethodInform:
		var raw informXML
		if err := d.DecodeElement(&raw, &start); err != nil {
			return nil, err
		}
		return raw.toInform(), nil
	case MethodGetParameterValuesResponse:
		var raw getParameterValuesResponseXML
		if err := d.DecodeElement(&raw, &start); err != nil {
			return nil, err
		}
		return &GetParameterValuesResponse{ParameterList: toParameterValues(raw.ParameterList)}, nil
	case MethodSetParameterValuesResponse:
		var raw setParameterValuesResponseXML
		if err := d.DecodeElement(&raw, &start); err != nil {
			return nil, err
		}
		return &SetParameterValuesResponse{Status: raw.Status}, nil
	case MethodGetParameterNamesResponse:
		var raw getParameterNamesResponseXML
		if err := d.DecodeElement(&raw, &start); err != nil {
			return nil, err
		}
		infos := make([]ParameterInfo, 0, len(raw.ParameterList))
		for _, p := range raw.ParameterList {
			infos = append(infos, ParameterInfo{Name: strings.TrimSpace(p.Name), Writable: p.Writable})
		}
		return &GetParameterNamesResponse{ParameterList: infos}, nil
	case MethodFault:
		var raw faultXML
		if err := d.DecodeElement(&raw, &start); err != nil {
			return nil, err
		}
		return &Fault{
			SOAPCode:    strings.TrimSpace(raw.SOAPCode),
			SOAPString:  strings.TrimSpace(raw.SOAPString),
			FaultCode:   raw.FaultCode,
			FaultString: strings.TrimSpace(raw.FaultString),
		}, nil
	default:
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return &Unknown{Name: start.Name.Local}, nil
	}
}
