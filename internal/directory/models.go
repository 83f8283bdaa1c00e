package directory

import "time"

// User maps an application identity to its phone number and push token.
//
// Invariants:
// - UserID and PhoneNumber are each unique across the directory.
// - PushToken is optional; a user without one is only reachable over a live
//   connection.
type User struct {
	UserID      string `json:"user_id" db:"user_id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	PushToken   string `json:"push_token,omitempty" db:"push_token"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
