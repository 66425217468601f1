package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uml-studio/engine/internal/cache"
	"github.com/uml-studio/engine/internal/models"
	"github.com/uml-studio/engine/internal/repository"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"github.com/uml-studio/engine/pkg/logger"
	"github.com/uml-studio/engine/pkg/utils"
)

type AuthService interface {
	Register(ctx context.Context, input *RegisterInput) (*models.User, error)
	Login(ctx context.Context, input *LoginInput) (*LoginResult, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Logout(ctx context.Context, token string, ip string) error
	VerifyToken(ctx context.Context, token string) (*jwt.RegisteredClaims, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	IP       string
}

type LoginInput struct {
	Email    string
	Password string
	IP       string
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *models.User
}

type authService struct {
	userRepo   repository.UserRepository
	sessions   SessionRecorder
	revoked    cache.RevocationList
	hmacSecret []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, sessions SessionRecorder, revoked cache.RevocationList, secret []byte, tokenTTL time.Duration) AuthService {
	if revoked == nil {
		revoked = cache.NewMemoryRevocationList()
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &authService{
		userRepo:   userRepo,
		sessions:   sessions,
		revoked:    revoked,
		hmacSecret: secret,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

var errInvalidCredentials = appErr.New(appErr.CodeUnauthorized, "invalid credentials")

func (s *authService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	email := normalizeEmail(input.Email)

	var existing models.User
	err := s.userRepo.GetByEmail(ctx, email, &existing)
	if err == nil {
		return nil, appErr.New(appErr.CodeAlreadyExists, "email is already registered")
	}
	if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	ph, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrap(fmt.Errorf("hash password: %w", err), appErr.CodeInternal, "register user failed")
	}

	user := &models.User{
		Name:         strings.TrimSpace(input.Name),
		Username:     usernameFromName(input.Name),
		Email:        email,
		PasswordHash: string(ph),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if appErr.IsCode(err, appErr.CodeAlreadyExists) {
			return nil, appErr.New(appErr.CodeAlreadyExists, "email is already registered")
		}
		return nil, err
	}

	logger.L().Info("user registered", zap.String("user_id", user.ID.String()))
	s.record(ctx, user.ID, input.IP, models.SessionActionRegister)
	return user, nil
}

func (s *authService) Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	var user models.User
	if err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email), &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmacSecret)
	if err != nil {
		return nil, appErr.Wrap(fmt.Errorf("sign token: %w", err), appErr.CodeInternal, "login failed")
	}

	logger.L().Info("user logged in", zap.String("user_id", user.ID.String()))
	s.record(ctx, user.ID, input.IP, models.SessionActionLogin)
	return &LoginResult{AccessToken: token, ExpiresIn: s.tokenTTL, User: &user}, nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.userRepo.GetByID(ctx, userID, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes token until it expires.
func (s *authService) Logout(ctx context.Context, token string, ip string) error {
	claims, err := s.VerifyToken(ctx, token)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return appErr.New(appErr.CodeUnauthorized, "invalid token subject")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, utils.TokenFingerprint(token), ttl); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "logout failed")
	}

	logger.L().Info("user logged out", zap.String("user_id", userID.String()))
	s.record(ctx, userID, ip, models.SessionActionLogout)
	return nil
}

// VerifyToken checks signature, expiry and the revocation list.
func (s *authService) VerifyToken(ctx context.Context, token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.hmacSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErr.Wrap(err, appErr.CodeUnauthorized, "token has expired")
		}
		return nil, appErr.Wrap(err, appErr.CodeUnauthorized, "invalid token")
	}
	if claims.Subject == "" {
		return nil, appErr.New(appErr.CodeUnauthorized, "invalid token subject")
	}

	revoked, err := s.revoked.IsRevoked(ctx, utils.TokenFingerprint(token))
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "token check failed")
	}
	if revoked {
		return nil, appErr.New(appErr.CodeUnauthorized, "token has been revoked")
	}
	return &claims, nil
}

func (s *authService) record(ctx context.Context, userID uuid.UUID, ip, action string) {
	if s.sessions == nil {
		return
	}
	entry := models.SessionLog{UserID: userID, IP: ip, Action: action, CreatedAt: s.now().UTC()}
	if err := s.sessions.RecordSession(ctx, entry); err != nil {
		logger.L().Warn("record session failed", zap.String("user_id", userID.String()), zap.String("action", action), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// usernameFromName takes the first word of name with only its first letter
// upper-cased.
func usernameFromName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	first := fields[0]
	r, size := utf8.DecodeRuneInString(first)
	return string(unicode.ToUpper(r)) + strings.ToLower(first[size:])
}
