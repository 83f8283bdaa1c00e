package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
)

// Minimal TwiML response builder. It intentionally avoids any provider SDK
// dependency; only the verbs the broker answers webhooks with are included.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlDial struct {
	XMLName xml.Name     `xml:"Dial"`
	Client  *twimlClient `xml:"Client,omitempty"`
}

type twimlClient struct {
	Identity string `xml:",chardata"`
}

// RejectTwiML refuses an inbound call outright.
func RejectTwiML() (string, error) {
	return render(twimlReject{Reason: "rejected"})
}

// SayTwiML plays a prompt and leaves the call up.
func SayTwiML(text string) (string, error) {
	if text == "" {
		return "", errors.New("telephony: say text required")
	}
	return render(twimlSay{Text: text})
}

// DialClientTwiML bridges the call to an application client endpoint.
func DialClientTwiML(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("telephony: client identity required")
	}
	return render(twimlDial{Client: &twimlClient{Identity: identity}})
}

// HangupTwiML ends the call.
func HangupTwiML() (string, error) {
	return render(twimlHangup{})
}

func render(verbs ...any) (string, error) {
	r := twimlResponse{Verbs: verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
