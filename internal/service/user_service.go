package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// tokenClaims is the payload of both access and refresh tokens
type tokenClaims struct {
	Type     string `json:"typ"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserService owns sign-up, login and the tokens that identify the caller
type UserService struct {
	userRepo  domain.UserRepository
	jwtConfig *infrastructure.JWTConfig
	clock     domain.Clock
	parser    *jwt.Parser
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo domain.UserRepository,
	jwtConfig *infrastructure.JWTConfig,
	clock domain.Clock,
	tracer trace.Tracer,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		jwtConfig: jwtConfig,
		clock:     clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(jwtConfig.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
		tracer: tracer,
		logger: logger,
	}
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Register creates an account. The username is what leaderboards display.
func (s *UserService) Register(ctx context.Context, req *domain.UserCreateRequest) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	user := &domain.User{
		ID:       uuid.New(),
		Email:    normalizeEmail(req.Email),
		Username: strings.TrimSpace(req.Username),
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	if _, err := s.userRepo.FindByEmail(ctx, user.Email); err == nil {
		return nil, nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Error("Failed to look up email", zap.Error(err))
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, nil, domain.ErrInternalServer
	}
	user.PasswordHash = string(hash)

	// The unique email index settles concurrent sign-ups
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			s.logger.Error("Failed to create user", zap.Error(err))
		}
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)
	return user, tokens, nil
}

// Login checks the password and issues a fresh token pair
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer span.End()

	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	// Also rejects accounts whose stored hash is not a bcrypt hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("User logged in", zap.String("user_id", user.ID.String()))
	return user, tokens, nil
}

// RefreshToken trades a refresh token for a new pair
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.RefreshToken")
	defer span.End()

	userID, err := s.subject(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	// A deleted account cannot keep refreshing
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	return s.issueTokens(user)
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetUserByID")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", id.String()))
	return s.userRepo.FindByID(ctx, id)
}

// ValidateAccessToken resolves the current user from an access token
func (s *UserService) ValidateAccessToken(token string) (uuid.UUID, error) {
	return s.subject(token, tokenTypeAccess)
}

func (s *UserService) issueTokens(user *domain.User) (*TokenPair, error) {
	now := s.clock.Now()
	accessExpiry := now.Add(s.jwtConfig.AccessTokenExpiry)

	access, err := s.sign(user, tokenTypeAccess, now, accessExpiry)
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return nil, domain.ErrInternalServer
	}
	refresh, err := s.sign(user, tokenTypeRefresh, now, now.Add(s.jwtConfig.RefreshTokenExpiry))
	if err != nil {
		s.logger.Error("Failed to sign refresh token", zap.Error(err))
		return nil, domain.ErrInternalServer
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *UserService) sign(user *domain.User, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.jwtConfig.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if tokenType == tokenTypeAccess {
		claims.Username = user.Username
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtConfig.SecretKey))
}

// subject verifies the token and its type and returns the user id it names
func (s *UserService) subject(token, tokenType string) (uuid.UUID, error) {
	var claims tokenClaims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.SecretKey), nil
	})
	if err != nil || claims.Type != tokenType {
		return uuid.Nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return userID, nil
}
