package soapenv

import (
	"errors"
	"strings"
	"testing"
)

type logInPayload struct {
	XMLName  struct{} `xml:"ses:logIn"`
	NS       string   `xml:"xmlns:ses,attr"`
	UserName string   `xml:"userName"`
	Password string   `xml:"password"`
}

func TestMarshalRequest(t *testing.T) {
	payload := logInPayload{NS: SessionNS, UserName: "jdoe", Password: "secret"}

	t.Run("Without Session", func(t *testing.T) {
		data, err := Marshal("", payload)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		s := string(data)
		for _, want := range []string{
			"<soapenv:Envelope",
			"xmlns:soapenv=\"http://schemas.xmlsoap.org/soap/envelope/\"",
			"<soapenv:Body>",
			"<ses:logIn",
			"<userName>jdoe</userName>",
		} {
			if !strings.Contains(s, want) {
				t.Errorf("request missing %q:\n%s", want, s)
			}
		}
		if strings.Contains(s, "sessionID") {
			t.Errorf("session header present without a session:\n%s", s)
		}
	})

	t.Run("With Session", func(t *testing.T) {
		data, err := Marshal("token-123", payload)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		s := string(data)
		if !strings.Contains(s, "<ses:sessionID xmlns:ses=\"http://ws.polarion.com/session\">token-123</ses:sessionID>") {
			t.Errorf("session header not echoed:\n%s", s)
		}
	})
}

func TestParseResponse(t *testing.T) {
	const loginResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Header>
    <ns1:sessionID soapenv:actor="http://schemas.xmlsoap.org/soap/actor/next" soapenv:mustUnderstand="0" xmlns:ns1="http://ws.polarion.com/session">wU8wYyxcqCzM0MjQ5</ns1:sessionID>
  </soapenv:Header>
  <soapenv:Body>
    <ns1:logInResponse xmlns:ns1="http://ws.polarion.com/SessionWebService-impl"/>
  </soapenv:Body>
</soapenv:Envelope>`

	resp, err := Parse([]byte(loginResponse))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if resp.SessionID != "wU8wYyxcqCzM0MjQ5" {
		t.Errorf("SessionID = %q, want the header token", resp.SessionID)
	}
	if first := resp.First(); first == nil || first.Name != "logInResponse" {
		t.Errorf("First() = %+v, want the logInResponse element", first)
	}
}

func TestParseFault(t *testing.T) {
	const faulted = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <soapenv:Fault>
      <faultcode>soapenv:Server.UserException</faultcode>
      <faultstring>com.polarion.core.util.exceptions.UserFriendlyRuntimeException: Session does not exist or timed out</faultstring>
      <detail><ns2:exceptionName xmlns:ns2="http://xml.apache.org/axis/">something</ns2:exceptionName></detail>
    </soapenv:Fault>
  </soapenv:Body>
</soapenv:Envelope>`

	_, err := Parse([]byte(faulted))

	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("Parse() error = %v, want *Fault", err)
	}
	if fault.Code != "soapenv:Server.UserException" {
		t.Errorf("Code = %q", fault.Code)
	}
	if !strings.Contains(fault.Reason, "Session does not exist") {
		t.Errorf("Reason = %q", fault.Reason)
	}
	if !fault.SessionExpired() {
		t.Error("SessionExpired() = false for a timed out session fault")
	}
}

func TestFaultSessionExpired(t *testing.T) {
	tests := []struct {
		name  string
		fault Fault
		want  bool
	}{
		{"Session Timeout", Fault{Reason: "Session does not exist or timed out"}, true},
		{"Not Authorized", Fault{Reason: "User not authorized"}, true},
		{"Plain Server Error", Fault{Code: "Server", Reason: "null pointer"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fault.SessionExpired(); got != tt.want {
				t.Errorf("SessionExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBodyTree(t *testing.T) {
	const response = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <ns2:getWorkItemByIdResponse xmlns:ns2="http://ws.polarion.com/TrackerWebService-impl">
      <getWorkItemByIdReturn uri="subterra:data-service:objects:/default/Proj${WorkItem}PROJ-1" unresolvable="false" xmlns:ns3="http://ws.polarion.com/types">
        <ns3:id>PROJ-1</ns3:id>
        <ns3:title>A title</ns3:title>
        <ns3:dueDate xsi:nil="true" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"/>
        <ns3:status>
          <ns3:id>open</ns3:id>
        </ns3:status>
      </getWorkItemByIdReturn>
    </ns2:getWorkItemByIdResponse>
  </soapenv:Body>
</soapenv:Envelope>`

	resp, err := Parse([]byte(response))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	ret := resp.First().Child("getWorkItemByIdReturn")
	if ret == nil {
		t.Fatal("return element not found")
	}
	if got := ret.Attr("uri"); !strings.Contains(got, "{WorkItem}PROJ-1") {
		t.Errorf("uri attr = %q", got)
	}
	if got := ret.ChildText("title"); got != "A title" {
		t.Errorf("title = %q, want A title", got)
	}
	if !ret.Child("dueDate").Nil() {
		t.Error("xsi:nil dueDate not detected")
	}
	if got := ret.Child("status").ChildText("id"); got != "open" {
		t.Errorf("status id = %q, want open", got)
	}
}
