package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// FCMClient sends incoming-call alerts through Firebase Cloud Messaging.
// No SDK; the send endpoint is a single authenticated POST.
type FCMClient struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

func NewFCMClient(endpoint, serverKey string) *FCMClient {
	return &FCMClient{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type fcmMessage struct {
	To       string            `json:"to"`
	Priority string            `json:"priority"`
	// TimeToLive 0 means deliver now or drop; a stale call alert is useless.
	TimeToLive int               `json:"time_to_live"`
	Data       map[string]string `json:"data"`
}

func (c *FCMClient) SendIncomingCallAlert(ctx context.Context, token, callerLabel, callID string) error {
	if c.serverKey == "" {
		return fmt.Errorf("fcm: server key not configured")
	}
	msg := fcmMessage{
		To:         token,
		Priority:   "high",
		TimeToLive: 0,
		Data: map[string]string{
			"type":       "incoming_call",
			"callerName": callerLabel,
			"callId":     callID,
			"timestamp":  strconv.FormatInt(time.Now().UnixMilli(), 10),
		},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("fcm: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fcm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("fcm: send returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
