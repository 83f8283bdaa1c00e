package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioClient drives the provider's call-control REST API.
// It implements calls.CallControl. No provider SDK; the two operations we need
// are plain authenticated form POSTs.
type TwilioClient struct {
	accountSID string
	authToken  string

	// voiceURL is the TwiML document Twilio executes when the callee answers
	// an outbound call.
	voiceURL string

	baseURL string
	client  *http.Client
}

func NewTwilioClient(accountSID, authToken, voiceURL string) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		voiceURL:   voiceURL,
		baseURL:    "https://api.twilio.com",
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL is for tests against a local fake.
func (c *TwilioClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// Place starts an outbound call and returns the provider call SID.
func (c *TwilioClient) Place(ctx context.Context, from, to, statusCallbackURL string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Url", c.voiceURL)
	form.Set("StatusCallback", statusCallbackURL)
	form.Set("StatusCallbackMethod", http.MethodPost)
	for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", ev)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	body, err := c.post(ctx, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("twilio: place call: %w", err)
	}

	var out struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("twilio: decode place response: %w", err)
	}
	if out.Sid == "" {
		return "", fmt.Errorf("twilio: place response missing sid")
	}
	return out.Sid, nil
}

// Terminate ends an in-flight call at the provider.
func (c *TwilioClient) Terminate(ctx context.Context, providerCallID string) error {
	form := url.Values{}
	form.Set("Status", "completed")

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, providerCallID)
	if _, err := c.post(ctx, endpoint, form); err != nil {
		return fmt.Errorf("twilio: terminate call %s: %w", providerCallID, err)
	}
	return nil
}

func (c *TwilioClient) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, twilioErrorMessage(body))
	}
	return body, nil
}

func twilioErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
