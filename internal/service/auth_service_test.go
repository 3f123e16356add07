package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type mockAdminRepo struct {
	admins    map[string]*models.Admin
	countErr  error
	createErr error
}

func newMockAdminRepo(t *testing.T, username, password string) *mockAdminRepo {
	repo := &mockAdminRepo{admins: map[string]*models.Admin{}}
	if username != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		repo.admins[username] = &models.Admin{ID: "admin-1", Username: username, PasswordHash: string(hash)}
	}
	return repo
}

func (m *mockAdminRepo) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	if admin, ok := m.admins[username]; ok {
		return admin, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminRepo) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	for _, admin := range m.admins {
		if admin.ID == id {
			return admin, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminRepo) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.admins), nil
}

func (m *mockAdminRepo) Create(ctx context.Context, admin *models.Admin) error {
	if m.createErr != nil {
		return m.createErr
	}
	admin.ID = "admin-new"
	m.admins[admin.Username] = admin
	return nil
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	repo := newMockAdminRepo(t, "admin", "secret")
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiry: time.Hour})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.Username)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.AdminID)

	info, err := svc.Verify(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "admin", info.Username)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	repo := newMockAdminRepo(t, "admin", "secret")
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret"})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "secret"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "admin"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	repo := newMockAdminRepo(t, "admin", "secret")
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiry: time.Minute})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	other := NewAuthService(repo, nil, nil, AuthConfig{Secret: "another-secret"})
	_, err = other.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceEnsureDefaultAdmin(t *testing.T) {
	repo := newMockAdminRepo(t, "", "")
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret"})

	created, err := svc.EnsureDefaultAdmin(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureDefaultAdmin(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.False(t, created)

	stored := repo.admins["admin"]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("admin123")))
}

func TestAuthServiceEnsureDefaultAdminStorageFailure(t *testing.T) {
	repo := newMockAdminRepo(t, "", "")
	repo.countErr = errors.New("dial tcp: connection refused")
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret"})

	_, err := svc.EnsureDefaultAdmin(context.Background(), "admin", "admin123")
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}
