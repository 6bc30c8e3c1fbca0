package services

import (
	"context"
	"errors"
	"time"

	"pingme/internal/models"
	"pingme/internal/store"
	"pingme/internal/uploads"
	"pingme/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserService struct {
	users   store.Users
	uploads uploads.Store
}

func NewUserService(users store.Users, up uploads.Store) *UserService {
	return &UserService{users: users, uploads: up}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	return s.users.Create(ctx, req.Username, string(hash), req.DisplayName)
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.ByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	}, nil
}

// Profile returns the authenticated user's record.
func (s *UserService) Profile(ctx context.Context, id string) (models.User, error) {
	return s.users.ByID(ctx, id)
}

// UpdateAvatar uploads the avatar image and stores its URL. An upload
// failure is surfaced unchanged and nothing is written.
func (s *UserService) UpdateAvatar(ctx context.Context, id, avatarDataURI string) (models.User, error) {
	url, err := s.uploads.Upload(ctx, avatarDataURI)
	if err != nil {
		return models.User{}, err
	}
	return s.users.UpdateAvatar(ctx, id, url)
}

func GenerateJWT(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour * 72).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_SECRET", "secret")))
}

func ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(utils.GetEnv("JWT_SECRET", "secret")), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
