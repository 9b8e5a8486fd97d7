package clients

import "context"

// RepositoryPort abstracts client app persistence.
type RepositoryPort interface {
	Create(ctx context.Context, app ClientApp) (ClientApp, error)
	FindByKeyID(ctx context.Context, keyID string) (ClientApp, error)
	List(ctx context.Context) ([]ClientApp, error)
	SetActive(ctx context.Context, keyID string, active bool) error
}
