package model

import (
	"strings"
	"time"

	"telegram-miniapp/internal/domain"
)

// AddressEntry maps a stable user identifier to the chat currently used to reach them.
// There is at most one entry per UserID; a newer record replaces the older one.
type AddressEntry struct {
	UserID    string    `json:"user_id"`
	Address   string    `json:"address"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAddressEntry(userID, address string) (*AddressEntry, error) {
	if err := ValidateAddress(userID, address); err != nil {
		return nil, err
	}
	return &AddressEntry{
		UserID:    strings.TrimSpace(userID),
		Address:   address,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// ValidateAddress rejects blank identifiers. The address itself is opaque and stored as given.
// Every directory backend calls it before writing.
func ValidateAddress(userID, address string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(address) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// NormalizeUserID trims userID and rejects it when blank.
func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrInvalidArgument
	}
	return userID, nil
}
