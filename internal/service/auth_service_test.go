package service

import (
	"context"
	"testing"
	"time"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-that-is-long-enough-123"

func TestSeedAdminAndLogin(t *testing.T) {
	store := newMemStore()
	svc := NewAuthService(store, testSecret, time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx, "admin", "s3cret"))
	assert.ErrorIs(t, svc.SeedAdmin(ctx, "admin", "other"), util.ErrUserExists)
	assert.Error(t, svc.SeedAdmin(ctx, "", "x"))

	stored, err := store.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", stored.Password)
	assert.Equal(t, model.Admin, stored.Role)

	resp, err := svc.Login(ctx, " admin ", "s3cret")
	require.NoError(t, err)
	claims, err := util.ParseJWT(resp.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, model.Admin, claims.Role)

	_, err = svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}
