package clients

import (
	"errors"
	"time"
)

// Package sentinels.
var (
	ErrNotFound           = errors.New("clients: not found")
	ErrDuplicate          = errors.New("clients: duplicate")
	ErrInvalidCredentials = errors.New("clients: invalid credentials")
)

// ClientApp is a calling application credentialed with an API key. Its
// application code becomes the default segment for two-segment permission
// codes in requests it makes.
type ClientApp struct {
	ID              int64
	ApplicationCode string
	Name            string
	KeyID           string
	KeyHash         string
	IsActive        bool
	CreatedAt       time.Time
}
