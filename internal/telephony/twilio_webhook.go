package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Twilio voice webhooks arrive as application/x-www-form-urlencoded.
// Only the fields the broker consumes are captured; parsing stays
// provider-adapter-only and makes no routing decisions.

// InboundForm is a provider-originated call hitting one of our numbers.
type InboundForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus string
	CallerName string
}

func ParseInboundCall(r *http.Request) (InboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundForm{}, err
	}
	return InboundForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
		CallerName: r.PostFormValue("CallerName"),
	}, nil
}

// StatusForm is an asynchronous call status update.
type StatusForm struct {
	CallSid         string
	CallStatus      string
	CallDurationSec int
}

func ParseStatusCallback(r *http.Request) (StatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusForm{}, err
	}
	f := StatusForm{
		CallSid:    r.PostFormValue("CallSid"),
		CallStatus: r.PostFormValue("CallStatus"),
	}
	if v := strings.TrimSpace(r.PostFormValue("CallDuration")); v != "" {
		// Twilio sends CallDuration only on completed; ignore garbage rather
		// than failing the whole webhook.
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.CallDurationSec = n
		}
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}
