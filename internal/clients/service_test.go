package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rivoli-ai/gatekeeper/internal/authz"
)

type fakeRepo struct {
	apps map[string]ClientApp
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{apps: make(map[string]ClientApp)}
}

func (f *fakeRepo) Create(_ context.Context, app ClientApp) (ClientApp, error) {
	if _, ok := f.apps[app.KeyID]; ok {
		return ClientApp{}, ErrDuplicate
	}
	app.ID = int64(len(f.apps) + 1)
	app.IsActive = true
	f.apps[app.KeyID] = app
	return app, nil
}

func (f *fakeRepo) FindByKeyID(_ context.Context, keyID string) (ClientApp, error) {
	app, ok := f.apps[keyID]
	if !ok {
		return ClientApp{}, ErrNotFound
	}
	return app, nil
}

func (f *fakeRepo) List(_ context.Context) ([]ClientApp, error) {
	out := make([]ClientApp, 0, len(f.apps))
	for _, app := range f.apps {
		out = append(out, app)
	}
	return out, nil
}

func (f *fakeRepo) SetActive(_ context.Context, keyID string, active bool) error {
	app, ok := f.apps[keyID]
	if !ok {
		return ErrNotFound
	}
	app.IsActive = active
	f.apps[keyID] = app
	return nil
}

func TestIssueAndAuthenticate(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	ctx := context.Background()

	app, apiKey, err := service.Issue(ctx, "crm", "crm backend")
	require.NoError(t, err)
	require.Equal(t, "crm", app.ApplicationCode)
	require.NotContains(t, apiKey, app.KeyHash)

	authenticated, err := service.Authenticate(ctx, apiKey)
	require.NoError(t, err)
	require.Equal(t, app.KeyID, authenticated.KeyID)

	_, err = service.Authenticate(ctx, apiKey+"tampered")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Authenticate(ctx, "gk_missing.secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Authenticate(ctx, "not-an-api-key")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateDeactivated(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	ctx := context.Background()

	app, apiKey, err := service.Issue(ctx, "crm", "crm backend")
	require.NoError(t, err)
	require.NoError(t, service.SetActive(ctx, app.KeyID, false))

	_, err = service.Authenticate(ctx, apiKey)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateMiddleware(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	_, apiKey, err := service.Issue(context.Background(), "crm", "crm backend")
	require.NoError(t, err)

	mw := Middleware{Service: service}
	var gotApp, gotSubject string
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotApp, _ = authz.ApplicationFromContext(r.Context())
		gotSubject, _ = authz.SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderAPIKey, apiKey)
	req.Header.Set(HeaderSubject, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "crm", gotApp)
	require.Equal(t, "alice", gotSubject)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderAPIKey, "gk_bogus.secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
