package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository/memory"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.NewUserRepository(), "secret", time.Hour)

	user, err := auth.Register(ctx, domain.RegisterUserDTO{Username: " attendant ", Password: "pa55word", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "attendant", user.Username)
	assert.Equal(t, domain.RoleOperator, user.Role, "self-registration never grants admin")
	assert.Empty(t, user.Password)

	_, err = auth.Register(ctx, domain.RegisterUserDTO{Username: "ATTENDANT", Password: "other1"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = auth.Login(ctx, domain.LoginUserDTO{Username: "attendant", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(ctx, domain.LoginUserDTO{Username: "ghost", Password: "pa55word"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := auth.Login(ctx, domain.LoginUserDTO{Username: "attendant", Password: "pa55word"})
	require.NoError(t, err)

	_, claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "attendant", claims["username"])
	assert.Equal(t, domain.RoleOperator, claims["role"])
	assert.Equal(t, "1", claims["sub"])
}

func TestAuthService_CreateUserRole(t *testing.T) {
	auth := NewAuthService(memory.NewUserRepository(), "secret", time.Hour)

	admin, err := auth.CreateUser(context.Background(), "root", "pa55word", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	_, err = auth.CreateUser(context.Background(), "bob", "pa55word", "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthService_ValidateTokenRejects(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	auth := NewAuthService(users, "secret", time.Hour)
	_, err := auth.CreateUser(ctx, "op", "pa55word", domain.RoleOperator)
	require.NoError(t, err)

	_, _, err = auth.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewAuthService(users, "another-secret", time.Hour)
	resp, err := other.Login(ctx, domain.LoginUserDTO{Username: "op", Password: "pa55word"})
	require.NoError(t, err)
	_, _, err = auth.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": domain.RoleOperator, "username": "op",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, _, err = auth.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
