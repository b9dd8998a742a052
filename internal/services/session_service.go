package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/licenseguard/licenseguard/internal/models"
	"github.com/licenseguard/licenseguard/internal/repositories"
	"github.com/licenseguard/licenseguard/internal/utils"
	"go.uber.org/zap"
)

// SessionService mints, verifies, and revokes bearer tokens. The token is
// an HS256 JWT whose jti is a random 256-bit session key; the session
// record in storage is authoritative for expiry, revocation, and the
// device the token is bound to.
type SessionService struct {
	sessionRepo    repositories.SessionRepository
	accountRepo    repositories.AccountRepository
	jwtSecret      string
	validity       time.Duration
	storageTimeout time.Duration
	logger         *zap.Logger
}

type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionService(
	sessionRepo repositories.SessionRepository,
	accountRepo repositories.AccountRepository,
	jwtSecret string,
	validity time.Duration,
	storageTimeout time.Duration,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:    sessionRepo,
		accountRepo:    accountRepo,
		jwtSecret:      jwtSecret,
		validity:       validity,
		storageTimeout: storageTimeout,
		logger:         logger,
	}
}

func (s *SessionService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storageTimeout)
}

// Issue creates a session bound to (account, fingerprint) and returns its
// bearer token. Session keys come from crypto/rand, so a token value is
// never reused.
func (s *SessionService) Issue(ctx context.Context, account *models.Account, fingerprint string) (*IssuedSession, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sessionID, err := utils.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.validity)
	session := &models.Session{
		ID:          sessionID,
		AccountID:   account.ID,
		Fingerprint: fingerprint,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, storageErr("create session", err)
	}

	token, err := s.signToken(account.ID, sessionID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("session issued",
		zap.String("account_id", account.ID.String()),
		zap.Time("expires_at", expiresAt),
	)

	return &IssuedSession{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *SessionService) signToken(accountID uuid.UUID, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	// The JWT exp sits an hour past the session expiry so the stored
	// session, not the signature check, is what decides expiry.
	claims := jwt.MapClaims{
		"sub": accountID.String(),
		"jti": sessionID,
		"exp": expiresAt.Add(time.Hour).Unix(),
		"iat": issuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// parseSessionID validates the token signature and extracts the session
// key. A token whose signature fails names no session we know about.
func (s *SessionService) parseSessionID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrSessionExpired
	}
	if err != nil || !token.Valid {
		return "", ErrSessionNotFound
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrSessionNotFound
	}
	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return "", ErrSessionNotFound
	}
	return sessionID, nil
}

// Verify resolves a token to its owning account. Expiry is checked lazily
// against the stored session on every call; a fingerprint other than the
// one the session was issued for is rejected, tokens are not portable
// across devices.
func (s *SessionService) Verify(ctx context.Context, tokenString, fingerprint string) (*models.Account, error) {
	sessionID, err := s.parseSessionID(tokenString)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}

	if session.Expired(time.Now()) {
		return nil, ErrSessionExpired
	}
	if session.Fingerprint != fingerprint {
		return nil, ErrDeviceMismatch
	}

	account, err := s.accountRepo.GetByID(ctx, session.AccountID)
	if errors.Is(err, repositories.ErrNotFound) {
		// Account deleted out from under the session; the session is
		// dead with it.
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, storageErr("get account", err)
	}
	return account, nil
}

// Revoke deletes the session a token names. Unknown, malformed, or
// already-revoked tokens are a no-op.
func (s *SessionService) Revoke(ctx context.Context, tokenString string) error {
	sessionID, err := s.parseSessionID(tokenString)
	if err != nil {
		return nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.sessionRepo.Delete(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageErr("delete session", err)
	}
	return nil
}

// RevokeAll logs an account out everywhere.
func (s *SessionService) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.sessionRepo.DeleteAllForAccount(ctx, accountID); err != nil {
		return storageErr("delete account sessions", err)
	}
	return nil
}

// RevokeDevice revokes every session bound to one fingerprint, used when
// a device binding is removed from an account.
func (s *SessionService) RevokeDevice(ctx context.Context, accountID uuid.UUID, fingerprint string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sessions, err := s.sessionRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return storageErr("list account sessions", err)
	}

	for _, session := range sessions {
		if session.Fingerprint != fingerprint {
			continue
		}
		if err := s.sessionRepo.Delete(ctx, session.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return storageErr("delete session", err)
		}
	}
	return nil
}
