package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	ErrNotFound        = errors.New("directory: not found")
	ErrInvalidArgument = errors.New("directory: invalid argument")
)

// Store is the persistence contract for the user directory.
//
// Upsert replaces the phone number and push token for an existing user_id
// (re-registration wins), matching the registration surface semantics.
type Store interface {
	Upsert(ctx context.Context, u User) error
	ByUserID(ctx context.Context, userID string) (User, error)
	ByPhoneNumber(ctx context.Context, number string) (User, error)
}

type Service struct {
	store Store
	log   *slog.Logger
	clock func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, clock: time.Now}
}

// Register upserts a user's number and push token.
func (s *Service) Register(ctx context.Context, userID, phoneNumber, pushToken string) (User, error) {
	if userID == "" || phoneNumber == "" {
		return User{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	u := User{
		UserID:      userID,
		PhoneNumber: phoneNumber,
		PushToken:   pushToken,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Upsert(ctx, u); err != nil {
		return User{}, err
	}
	s.log.Info("user registered", "user_id", userID, "phone_number", phoneNumber, "has_push_token", pushToken != "")
	return u, nil
}

func (s *Service) ByUserID(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrInvalidArgument
	}
	return s.store.ByUserID(ctx, userID)
}

func (s *Service) ByPhoneNumber(ctx context.Context, number string) (User, error) {
	if number == "" {
		return User{}, ErrInvalidArgument
	}
	return s.store.ByPhoneNumber(ctx, number)
}
