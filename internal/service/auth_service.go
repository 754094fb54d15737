package service

import (
	"errors"

	"ctf_backend/internal/config"
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/internal/util"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService issues credentials for organizer and admin accounts. Players
// normally arrive through the identity provider and never log in here.
type AuthService struct {
	UserRepo *repository.UserRepository
	JWT      *config.JWTConfig
}

func NewAuthService(userRepo *repository.UserRepository, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{UserRepo: userRepo, JWT: jwtCfg}
}

func (s *AuthService) Register(username, password string, role model.UserRole) (*model.User, error) {
	_, err := s.UserRepo.FindByUsername(username)
	if err == nil {
		return nil, util.ErrUsernameRegistered
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: string(hashed),
		Role:     role,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(username, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByUsername(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, util.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.JWT.Secret, s.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
