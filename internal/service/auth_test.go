package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository"
	"github.com/stuorg/portal/internal/repository/dao"
	"github.com/stuorg/portal/internal/service"
	"github.com/stuorg/portal/internal/testutil"
)

func TestAuthService(t *testing.T) {
	ctx := context.Background()

	newSvc := func(t *testing.T) *service.AuthService {
		db := testutil.OpenTestDB(t)
		return service.NewAuthService(repository.NewUserRepository(dao.NewUserDAO(db)))
	}

	t.Run("signup hashes the password", func(t *testing.T) {
		svc := newSvc(t)

		created, err := svc.Signup(ctx, domain.User{
			Email:    "amy@club.org",
			Password: "s3cret-passphrase",
			Name:     "Amy",
			Role:     domain.RoleMember,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.NotEqual(t, "s3cret-passphrase", created.Password)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		svc := newSvc(t)

		_, err := svc.Signup(ctx, domain.User{Email: "amy@club.org", Password: "pw", Role: domain.RoleMember})
		require.NoError(t, err)

		_, err = svc.Signup(ctx, domain.User{Email: "amy@club.org", Password: "pw", Role: domain.RoleMember})
		assert.ErrorIs(t, err, service.ErrUserEmailExists)
	})

	t.Run("login verifies credentials", func(t *testing.T) {
		svc := newSvc(t)

		_, err := svc.Signup(ctx, domain.User{Email: "amy@club.org", Password: "s3cret-passphrase", Role: domain.RoleOperator})
		require.NoError(t, err)

		user, err := svc.Login(ctx, "amy@club.org", "s3cret-passphrase")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleOperator, user.Role)

		_, err = svc.Login(ctx, "amy@club.org", "wrong")
		assert.ErrorIs(t, err, service.ErrWrongPassword)

		_, err = svc.Login(ctx, "nobody@club.org", "s3cret-passphrase")
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})
}
