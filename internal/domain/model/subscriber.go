package model

import (
	"strings"
	"time"

	"telegram-miniapp/internal/domain"
)

// Subscriber is a newsletter signup. Email is unique across subscribers.
type Subscriber struct {
	Email        string
	FirstName    string
	UserID       string
	SubscribedAt time.Time
}

func NewSubscriber(email, firstName, userID string) (*Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscriber{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		UserID:       strings.TrimSpace(userID),
		SubscribedAt: time.Now().UTC(),
	}, nil
}
