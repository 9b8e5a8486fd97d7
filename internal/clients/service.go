package clients

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "gk_"

// Service wraps client app credential rules. API keys have the wire form
// "gk_<keyID>.<secret>"; only a bcrypt hash of the secret is stored.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Issue registers a client app for an application and returns the one-time
// plaintext API key alongside the stored record.
func (s *Service) Issue(ctx context.Context, applicationCode, name string) (ClientApp, string, error) {
	keyID := uuid.NewString()
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return ClientApp{}, "", err
	}
	app, err := s.repo.Create(ctx, ClientApp{
		ApplicationCode: applicationCode,
		Name:            name,
		KeyID:           keyID,
		KeyHash:         string(hash),
	})
	if err != nil {
		return ClientApp{}, "", err
	}
	return app, keyPrefix + keyID + "." + secret, nil
}

// Authenticate validates an API key and returns the calling client app.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (ClientApp, error) {
	raw, ok := strings.CutPrefix(apiKey, keyPrefix)
	if !ok {
		return ClientApp{}, ErrInvalidCredentials
	}
	keyID, secret, ok := strings.Cut(raw, ".")
	if !ok || keyID == "" || secret == "" {
		return ClientApp{}, ErrInvalidCredentials
	}
	app, err := s.repo.FindByKeyID(ctx, keyID)
	if err != nil {
		return ClientApp{}, ErrInvalidCredentials
	}
	if !app.IsActive {
		return ClientApp{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(app.KeyHash), []byte(secret)); err != nil {
		return ClientApp{}, ErrInvalidCredentials
	}
	return app, nil
}

// List returns every registered client app.
func (s *Service) List(ctx context.Context) ([]ClientApp, error) {
	return s.repo.List(ctx)
}

// SetActive toggles a client app's active flag.
func (s *Service) SetActive(ctx context.Context, keyID string, active bool) error {
	return s.repo.SetActive(ctx, keyID, active)
}
