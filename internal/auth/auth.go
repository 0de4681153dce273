package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coinpurse/coinpurse/internal/db"
	"github.com/coinpurse/coinpurse/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a bad login/password pair. The two
// cases are deliberately indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid login or password")

const tokenTTL = 24 * time.Hour

// AuthService handles registration, credential checks and session tokens.
type AuthService struct {
	DB     *db.DB
	secret []byte
}

// NewAuthService creates a new auth service
func NewAuthService(database *db.DB, jwtSecret string) *AuthService {
	return &AuthService{DB: database, secret: []byte(jwtSecret)}
}

// Register creates a new user with a hashed password. Duplicate emails and
// logins are rejected with distinct errors.
func (s *AuthService) Register(ctx context.Context, login, password, firstName, lastName, email string) (*models.User, error) {
	if login == "" || password == "" || firstName == "" || lastName == "" || email == "" {
		return nil, fmt.Errorf("login, password, first name, last name and email are required")
	}
	if len(login) > 50 {
		return nil, fmt.Errorf("login too long (max 50 characters)")
	}
	if len(password) > 72 {
		// bcrypt truncates beyond 72 bytes
		return nil, fmt.Errorf("password too long (max 72 characters)")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.DB.CreateUser(ctx, &models.User{
		Login:        login,
		PasswordHash: string(hashedPassword),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns the user with a signed JWT.
func (s *AuthService) Login(ctx context.Context, login, password string) (*models.User, string, error) {
	user, err := s.DB.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"login":   user.Login,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, "", err
	}
	return user, tokenString, nil
}

// UserFromToken extracts the user ID from a JWT
func (s *AuthService) UserFromToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	return int(userID), nil
}
