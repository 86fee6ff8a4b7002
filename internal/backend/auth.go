// Package backend contains the reference calendar services behind the HTTP API:
// account registration and login, token renewal, and owner-checked event CRUD.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/convert"
	pkgcrypto "github.com/and161185/calsync/internal/crypto"
	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/limiter"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/repository"
	"github.com/and161185/calsync/internal/validate"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 2 * time.Hour

// Identity is the caller resolved from a verified token.
type Identity struct {
	UID  string
	Name string
}

// AuthService defines account and token operations.
type AuthService interface {
	// Register creates an account and signs it in.
	Register(ctx context.Context, name, email, password string) (model.AuthResult, error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.AuthResult, error)
	// Renew issues a fresh token for an already authenticated user.
	Renew(ctx context.Context, uid string) (model.AuthResult, error)
	// ParseToken verifies a token and returns the identity it carries.
	ParseToken(token string) (Identity, error)
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	signKey  []byte
	tokenTTL time.Duration
	lim      limiter.Limiter
	validate *validator.Validate
	now      func() time.Time
	log      *zap.Logger
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, tokenTTL time.Duration,
	lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		users:    users,
		signKey:  signKey,
		tokenTTL: tokenTTL,
		lim:      lim,
		validate: validate.New(),
		now:      time.Now,
		log:      log,
	}
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Register validates the input, stores the account with an Argon2id hash and issues a token.
func (s *AuthServiceImpl) Register(ctx context.Context, name, email, password string) (model.AuthResult, error) {
	in := convert.RegisterRequest{Name: name, Email: email, Password: password}
	if err := s.validate.Struct(in); err != nil {
		return model.AuthResult{}, &errs.FieldsError{Fields: validate.Fields(err)}
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.AuthResult{}, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	u := &model.StoredUser{ID: uid.String(), Name: name, Email: email, PwdHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return model.AuthResult{}, err
	}
	s.log.Info("user registered", zap.String("uid", u.ID))
	return s.issue(u.ID, u.Name)
}

// LoginWithIP authenticates with rate limiting by (email, ip).
// Unknown emails and wrong passwords both yield errs.ErrUnauthorized.
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.AuthResult, error) {
	if err := s.validate.Struct(convert.LoginRequest{Email: email, Password: password}); err != nil {
		return model.AuthResult{}, &errs.FieldsError{Fields: validate.Fields(err)}
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.AuthResult{}, err
	}
	if !allowed {
		return model.AuthResult{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.AuthResult{}, err
	}
	ok := false
	if err == nil {
		if ok, err = pkgcrypto.VerifyPassword(password, u.PwdHash); err != nil {
			s.log.Warn("stored hash unreadable", zap.String("uid", u.ID), zap.Error(err))
		}
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.AuthResult{}, errs.ErrRateLimited
		}
		return model.AuthResult{}, errs.ErrUnauthorized
	}

	// best-effort
	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("reset login attempts", zap.Error(err))
	}
	return s.issue(u.ID, u.Name)
}

// Renew reloads the user so a deleted account cannot keep renewing.
func (s *AuthServiceImpl) Renew(ctx context.Context, uid string) (model.AuthResult, error) {
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return model.AuthResult{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.AuthResult{}, err
	}
	return s.issue(u.ID, u.Name)
}

// ParseToken verifies an HS256 token and its expiry.
func (s *AuthServiceImpl) ParseToken(token string) (Identity, error) {
	var c sessionClaims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token without subject", errs.ErrUnauthorized)
	}
	return Identity{UID: c.Subject, Name: c.Name}, nil
}

// issue creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issue(uid, name string) (model.AuthResult, error) {
	now := s.now()
	claims := sessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{Token: signed, UID: uid, Name: name}, nil
}
