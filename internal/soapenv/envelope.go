// Package soapenv implements the minimal SOAP 1.1 plumbing the
// transport adapter needs: request marshaling with the session header,
// response parsing into a namespace-resolved element tree, and fault
// extraction.
package soapenv

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	envelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

	// SessionNS is the namespace of the session id header element the
	// server hands out at login and expects echoed on every call.
	SessionNS = "http://ws.polarion.com/session"
)

type requestEnvelope struct {
	XMLName xml.Name      `xml:"soapenv:Envelope"`
	EnvNS   string        `xml:"xmlns:soapenv,attr"`
	Header  requestHeader `xml:"soapenv:Header"`
	Body    requestBody   `xml:"soapenv:Body"`
}

type requestHeader struct {
	SessionID *sessionHeader
}

type sessionHeader struct {
	XMLName xml.Name `xml:"ses:sessionID"`
	NS      string   `xml:"xmlns:ses,attr"`
	Value   string   `xml:",chardata"`
}

type requestBody struct {
	Inner []byte `xml:",innerxml"`
}

// Marshal renders a request envelope around an operation payload. The
// payload struct names its own operation element and namespace. With a
// non-empty session id the session header is echoed the way the server
// handed it out at login.
func Marshal(sessionID string, payload any) ([]byte, error) {
	inner, err := xml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := requestEnvelope{
		EnvNS: envelopeNS,
		Body:  requestBody{Inner: inner},
	}
	if sessionID != "" {
		env.Header.SessionID = &sessionHeader{NS: SessionNS, Value: sessionID}
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// Fault is a SOAP 1.1 fault, surfaced as the error of a faulted call.
type Fault struct {
	Code   string
	Reason string
	Detail string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Reason)
}

// SessionExpired reports whether the fault looks like a dead or missing
// session, the one condition the transport re-establishes on its own.
func (f *Fault) SessionExpired() bool {
	s := strings.ToLower(f.Code + " " + f.Reason)
	return strings.Contains(s, "session") || strings.Contains(s, "not authorized")
}

// Response is a parsed, non-faulted response envelope.
type Response struct {
	// SessionID carries the session header when the server sent one;
	// logIn responses do.
	SessionID string
	// Body holds the body's element children, namespaces resolved.
	Body []*Node
}

// First returns the first body element, which is the operation response
// in every service this client talks to.
func (r *Response) First() *Node {
	if len(r.Body) == 0 {
		return nil
	}
	return r.Body[0]
}

// Parse reads a response envelope. A fault in the body comes back as a
// *Fault error; XML that does not parse is reported as is.
func Parse(data []byte) (*Response, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if root == nil || root.Name != "Envelope" {
		return nil, fmt.Errorf("not a soap envelope")
	}
	body := root.Child("Body")
	if body == nil {
		return nil, fmt.Errorf("envelope has no body")
	}
	if fault := body.Child("Fault"); fault != nil {
		return nil, &Fault{
			Code:   strings.TrimSpace(fault.ChildText("faultcode")),
			Reason: strings.TrimSpace(fault.ChildText("faultstring")),
			Detail: strings.TrimSpace(fault.ChildText("detail")),
		}
	}
	resp := &Response{Body: body.Children}
	if header := root.Child("Header"); header != nil {
		resp.SessionID = strings.TrimSpace(header.ChildText("sessionID"))
	}
	return resp, nil
}
