package service

import (
	"context"
	"errors"
	"strings"

	"memeperp/internal/models"
	"memeperp/internal/repository"
	"memeperp/pkg/crypto"
	"memeperp/pkg/utils"
)

// Ошибки сервиса пользователей
var (
	ErrInvalidUsername = errors.New("username must be 3-32 characters")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
	ErrUsernameTaken   = errors.New("username already taken")
)

// UserService предоставляет бизнес-логику для пользователей.
//
// Новый пользователь получает стартовый демо-баланс: площадка торгует
// синтетикой, реальные средства заходят только через депозитный webhook
type UserService struct {
	users          UserRepositoryInterface
	initialBalance float64
}

// NewUserService создает новый экземпляр UserService
func NewUserService(users UserRepositoryInterface, initialBalance float64) *UserService {
	return &UserService{
		users:          users,
		initialBalance: initialBalance,
	}
}

// CreateUser регистрирует пользователя со стартовым балансом
func (s *UserService) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := utils.ValidateUsername(username); err != nil {
		return nil, ErrInvalidUsername
	}
	if len(password) < 8 {
		return nil, ErrInvalidPassword
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Balance:      s.initialBalance,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return user, nil
}

// GetUser возвращает пользователя по ID
func (s *UserService) GetUser(ctx context.Context, id int) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	return user, nil
}
