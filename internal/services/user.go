package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rcubed-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const jwtExpDays = 30

// Sentinel errors surfaced to the presentation layer.
var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrUnknownUser   = errors.New("unknown user")
	ErrSelfFriend    = errors.New("cannot add yourself as a friend")
)

// UserStore is the persistence surface the user service needs.
// Implemented by repository.UserRepository.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	PushFriend(ctx context.Context, username, friend string) (matched, modified bool, err error)
	PullFriend(ctx context.Context, username, friend string) (matched, modified bool, err error)
}

// UserService handles accounts, login tokens and friends lists.
type UserService struct {
	users     UserStore
	jwtSecret string
}

// NewUserService creates a new user service.
func NewUserService(users UserStore, jwtSecret string) *UserService {
	return &UserService{users: users, jwtSecret: jwtSecret}
}

// Signup creates a new account. The store itself does no uniqueness
// check, so the username is pre-checked here; a taken name returns
// ErrUsernameTaken.
func (s *UserService) Signup(ctx context.Context, username string) (*models.User, error) {
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	user, err := s.users.Insert(ctx, &models.User{Username: username, Friends: []string{}})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login looks up an existing account and issues a token for it.
// An unknown username returns ErrUnknownUser.
func (s *UserService) Login(ctx context.Context, username string) (*models.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, "", ErrUnknownUser
	}

	token, err := s.GenerateJWT(username)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Lookup fetches a user record by username. Absent is nil, nil.
func (s *UserService) Lookup(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// Delete removes the user's account. Photos are not cascaded.
func (s *UserService) Delete(ctx context.Context, user *models.User) (models.Outcome, error) {
	deleted, err := s.users.Delete(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if !deleted {
		return models.OutcomeNotFound, nil
	}
	return models.OutcomeOK, nil
}

// AddFriend puts name on the user's friends list. Adding a name that
// is already listed is a no-op. A user cannot befriend themselves:
// the friends list must never contain the owner's own name.
func (s *UserService) AddFriend(ctx context.Context, user *models.User, name string) (*models.User, models.Outcome, error) {
	if name == user.Username {
		return nil, 0, ErrSelfFriend
	}
	if user.HasFriend(name) {
		return user, models.OutcomeNoChange, nil
	}

	matched, modified, err := s.users.PushFriend(ctx, user.Username, name)
	if err != nil {
		return nil, 0, err
	}
	if !matched {
		return nil, models.OutcomeNotFound, nil
	}
	if !modified {
		// Another session added the same friend first.
		return user, models.OutcomeNoChange, nil
	}

	updated := user.Clone()
	updated.Friends = append(updated.Friends, name)
	return updated, models.OutcomeOK, nil
}

// RemoveFriend takes name off the user's friends list. Removing a
// name that is not listed is a success no-op, never an error.
func (s *UserService) RemoveFriend(ctx context.Context, user *models.User, name string) (*models.User, models.Outcome, error) {
	if !user.HasFriend(name) {
		return user, models.OutcomeNoChange, nil
	}

	matched, modified, err := s.users.PullFriend(ctx, user.Username, name)
	if err != nil {
		return nil, 0, err
	}
	if !matched {
		return nil, models.OutcomeNotFound, nil
	}
	if !modified {
		return user, models.OutcomeNoChange, nil
	}

	updated := user.Clone()
	friends := updated.Friends[:0]
	for _, f := range updated.Friends {
		if f != name {
			friends = append(friends, f)
		}
	}
	updated.Friends = friends
	return updated, models.OutcomeOK, nil
}

// GenerateJWT generates a signed token carrying the username.
func (s *UserService) GenerateJWT(username string) (string, error) {
	claims := jwt.MapClaims{
		"username": username,
		"exp":      time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a token and returns the username it carries.
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	username, ok := claims["username"].(string)
	if !ok {
		return "", fmt.Errorf("username not found in token")
	}
	return username, nil
}
