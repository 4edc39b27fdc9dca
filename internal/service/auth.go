package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/config"
	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

const minPasswordLength = 6

// AuthService handles authentication and account registration
type AuthService struct {
	store     repository.Store
	jwtConfig config.JWT
	logger    *zap.Logger
	hashCost  int
	now       func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(store repository.Store, jwtConfig config.JWT, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:     store,
		jwtConfig: jwtConfig,
		logger:    logger.Named("auth"),
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// Claims represents JWT claims
type Claims struct {
	UserID string   `json:"id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Login authenticates an account by employee number and password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.store.Users().GetByEmployeeNumber(ctx, req.EmployeeNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, classify(s.logger, "login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	if !user.IsActive {
		return nil, apperr.Unauthorized("user account is inactive, contact an administrator")
	}

	return s.respond(user)
}

// Register creates an account. Accounts without roles get the user role.
func (s *AuthService) Register(ctx context.Context, req models.UserRequest) (*models.AuthResponse, error) {
	roles, err := models.ParseRoles(req.Roles)
	if err != nil {
		return nil, apperr.InvalidRequest("%s", err.Error())
	}

	user := models.User{
		EmployeeNumber: req.EmployeeNumber,
		NationalID:     req.NationalID,
		FullName:       req.FullName,
		IsActive:       true,
		Roles:          roles,
	}
	user.Normalize()
	if user.EmployeeNumber == "" || user.NationalID == "" || user.FullName == "" {
		return nil, apperr.InvalidRequest("employee number, national id and full name are required")
	}

	user.PasswordHash, err = s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Users().Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflict("an account with this employee number or national id already exists", err)
	}
	if err != nil {
		return nil, classify(s.logger, "register", err)
	}

	s.logger.Info("Account registered",
		zap.String("user_id", created.ID.String()),
		zap.Strings("roles", created.Roles.Strings()))
	return s.respond(created)
}

// CheckStatus reloads the principal's account and issues a fresh token.
func (s *AuthService) CheckStatus(ctx context.Context, principal models.Principal) (*models.AuthResponse, error) {
	user, err := s.store.Users().GetByID(ctx, principal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, classify(s.logger, "check status", err)
	}
	return s.respond(user)
}

// ListUsers returns every account ordered by full name.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, classify(s.logger, "list users", err)
	}
	return users, nil
}

// UpdatePassword replaces the password of the target account.
func (s *AuthService) UpdatePassword(ctx context.Context, targetID uuid.UUID, password string) (*models.User, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().UpdatePassword(ctx, targetID, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("user %s not found", targetID)
	}
	if err != nil {
		return nil, classify(s.logger, "update password", err)
	}
	return user, nil
}

// Authenticate resolves a bearer token to the current state of its account.
// Inactive accounts still authenticate; callers decide what they may do.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (models.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return models.Principal{}, apperr.Unauthorized("invalid or expired token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return models.Principal{}, apperr.Unauthorized("invalid user id in token")
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Principal{}, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return models.Principal{}, classify(s.logger, "authenticate", err)
	}
	return user.Principal(), nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

func (s *AuthService) respond(user *models.User) (*models.AuthResponse, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, classify(s.logger, "generate token", fmt.Errorf("failed to generate token: %w", err))
	}
	return &models.AuthResponse{User: user, Token: token}, nil
}

// generateToken generates a JWT token for a user
func (s *AuthService) generateToken(user *models.User) (string, error) {
	now := s.now()
	expirationTime := now.Add(time.Duration(s.jwtConfig.ExpiresIn) * time.Hour)

	claims := &Claims{
		UserID: user.ID.String(),
		Roles:  user.Roles.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

func (s *AuthService) hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.InvalidRequest("password must be at least %d characters", minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", classify(s.logger, "hash password", fmt.Errorf("failed to hash password: %w", err))
	}
	return string(hashed), nil
}
