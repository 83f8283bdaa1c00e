package ws

import "encoding/json"

// Wire protocol for the live connection, one JSON object per message.
//
// Client -> server kinds: register, initiate_call, answer_call, hangup.
// Server -> client kinds: register_success, call_initiated, call_failed,
// incoming_call, call_status, error.

type clientMessage struct {
	Type string `json:"type"`

	// register
	UserID string `json:"userId,omitempty"`

	// initiate_call
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`

	// answer_call, hangup
	CallID string `json:"callId,omitempty"`
}

func parseClientMessage(raw []byte) (clientMessage, error) {
	var m clientMessage
	err := json.Unmarshal(raw, &m)
	return m, err
}

type RegisterSuccess struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type CallInitiated struct {
	Type   string `json:"type"`
	CallID string `json:"callId"`
	To     string `json:"to"`
}

type CallFailed struct {
	Type   string `json:"type"`
	CallID string `json:"callId,omitempty"`
	Reason string `json:"reason"`
}

type IncomingCall struct {
	Type   string `json:"type"`
	From   string `json:"from"`
	To     string `json:"to"`
	CallID string `json:"callId"`
}

type CallStatus struct {
	Type   string `json:"type"`
	CallID string `json:"callId"`
	Status string `json:"status"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	kindRegister     = "register"
	kindInitiateCall = "initiate_call"
	kindAnswerCall   = "answer_call"
	kindHangup       = "hangup"

	KindRegisterSuccess = "register_success"
	KindCallInitiated   = "call_initiated"
	KindCallFailed      = "call_failed"
	KindIncomingCall    = "incoming_call"
	KindCallStatus      = "call_status"
	KindError           = "error"
)
