package model

import (
	"strconv"
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceBookDownload ServiceType = "book_download"
	ServiceOneOnOne     ServiceType = "one_on_one"
	ServiceNewsletter   ServiceType = "newsletter"
)

// MiniAppUser is the subset of Telegram.WebApp.initDataUnsafe.user the frontend forwards.
type MiniAppUser struct {
	ID        int64  `json:"id" validate:"required,gt=0"`
	FirstName string `json:"first_name" validate:"max=128"`
	Username  string `json:"username" validate:"max=64"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
}

// UserID is the directory key for this user.
func (u MiniAppUser) UserID() string { return strconv.FormatInt(u.ID, 10) }

func (u MiniAppUser) DisplayUsername() string {
	if strings.TrimSpace(u.Username) == "" {
		return "no username"
	}
	return u.Username
}

// ServiceRequest is the validated body of POST /api/service.
type ServiceRequest struct {
	Service ServiceType `json:"service" validate:"required,oneof=book_download one_on_one newsletter"`
	User    MiniAppUser `json:"user" validate:"required"`
}

// ServiceResponse mirrors the JSON the Mini App frontend expects back.
type ServiceResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	Delivered bool   `json:"delivered"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RequestLogEntry records one handled service request.
type RequestLogEntry struct {
	ID        string
	CreatedAt time.Time
	UserID    string
	FirstName string
	Service   string
	Status    string
}
