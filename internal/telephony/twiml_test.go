package telephony

import (
	"strings"
	"testing"
)

func TestRejectTwiML(t *testing.T) {
	out, err := RejectTwiML()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Response>") || !strings.Contains(out, `<Reject reason="rejected">`) {
		t.Fatalf("unexpected document:\n%s", out)
	}
}

func TestSayTwiML(t *testing.T) {
	out, err := SayTwiML("Please hold while we try to connect you.")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Say>Please hold while we try to connect you.</Say>") {
		t.Fatalf("unexpected document:\n%s", out)
	}
	if !strings.HasPrefix(out, "<?xml") {
		t.Fatalf("expected XML declaration:\n%s", out)
	}

	if _, err := SayTwiML(""); err == nil {
		t.Fatalf("empty prompt must fail")
	}
}

func TestDialClientTwiML(t *testing.T) {
	out, err := DialClientTwiML("user-1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Dial>") || !strings.Contains(out, "<Client>user-1</Client>") {
		t.Fatalf("unexpected document:\n%s", out)
	}

	if _, err := DialClientTwiML(""); err == nil {
		t.Fatalf("empty identity must fail")
	}
}

func TestHangupTwiML(t *testing.T) {
	out, err := HangupTwiML()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Hangup>") {
		t.Fatalf("unexpected document:\n%s", out)
	}
}
