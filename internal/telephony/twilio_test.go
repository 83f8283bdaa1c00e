package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTwilioClientPlace(t *testing.T) {
	var gotPath string
	var gotForm map[string][]string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient("ACtest", "secret", "https://broker.example.com/webhooks/twilio/answer")
	c.SetBaseURL(srv.URL)

	sid, err := c.Place(context.Background(), "+15550000000", "+15551234567", "https://broker.example.com/webhooks/twilio/status")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("sid = %q, want CA123", sid)
	}
	if gotPath != "/2010-04-01/Accounts/ACtest/Calls.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "ACtest" || gotPass != "secret" {
		t.Fatalf("unexpected basic auth %q:%q", gotUser, gotPass)
	}
	if got := gotForm["To"]; len(got) != 1 || got[0] != "+15551234567" {
		t.Fatalf("unexpected To %v", got)
	}
	if got := gotForm["Url"]; len(got) != 1 || got[0] != "https://broker.example.com/webhooks/twilio/answer" {
		t.Fatalf("unexpected Url %v", got)
	}
	if got := gotForm["StatusCallback"]; len(got) != 1 || got[0] != "https://broker.example.com/webhooks/twilio/status" {
		t.Fatalf("unexpected StatusCallback %v", got)
	}
	if got := gotForm["StatusCallbackEvent"]; len(got) != 4 {
		t.Fatalf("expected 4 status callback events, got %v", got)
	}
}

func TestTwilioClientPlaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":20003,"message":"Authenticate"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient("ACtest", "wrong", "https://broker.example.com/answer")
	c.SetBaseURL(srv.URL)

	_, err := c.Place(context.Background(), "+15550000000", "+15551234567", "https://broker.example.com/status")
	if err == nil {
		t.Fatalf("expected error")
	}
	// The provider's message must survive into the error chain.
	if !strings.Contains(err.Error(), "Authenticate") {
		t.Fatalf("error does not carry provider message: %v", err)
	}
}

func TestTwilioClientTerminate(t *testing.T) {
	var gotPath, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotStatus = r.PostFormValue("Status")
		_, _ = w.Write([]byte(`{"sid":"CA123","status":"completed"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient("ACtest", "secret", "")
	c.SetBaseURL(srv.URL)

	if err := c.Terminate(context.Background(), "CA123"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/ACtest/Calls/CA123.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotStatus != "completed" {
		t.Fatalf("unexpected Status %q", gotStatus)
	}
}
