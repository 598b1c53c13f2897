package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/util"
	"mocktest_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	Users  repository.UserStore
	Secret string
	Expiry time.Duration
}

func NewAuthService(users repository.UserStore, secret string, expiry time.Duration) *AuthService {
	return &AuthService{Users: users, Secret: secret, Expiry: expiry}
}

type LoginResp struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResp, error) {
	user, err := s.Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Log.Error("user lookup failed", zap.Error(err))
		}
		return nil, util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Secret, s.Expiry)
	if err != nil {
		return nil, err
	}
	return &LoginResp{Token: token, User: *user}, nil
}

// SeedAdmin creates the admin account unless the username is taken.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("admin username and password must be set")
	}
	_, err := s.Users.FindByUsername(ctx, username)
	if err == nil {
		return util.ErrUserExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &model.User{Username: username, Password: string(hashed), Role: model.Admin}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		return err
	}
	logger.Log.Info("admin user created", zap.String("username", username))
	return nil
}
