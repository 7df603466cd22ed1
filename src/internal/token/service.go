package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/metrics"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are carried by both credential types. Subject is the user id and ID the jti.
type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// ClientInfo is recorded on the session for auditing.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type Service interface {
	Issue(ctx context.Context, userID, role string, client ClientInfo) (*Pair, error)
	// Rotate redeems a refresh credential for a new pair. Presenting a credential
	// that was already redeemed revokes every session of its user.
	Rotate(ctx context.Context, refreshToken string, client ClientInfo) (*Pair, error)
	RevokeAll(ctx context.Context, userID, reason string) (int64, error)
	VerifyAccess(accessToken string) (*Claims, error)
}

type Option func(*tokenService)

func WithClock(now func() time.Time) Option {
	return func(s *tokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *tokenService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *tokenService) {
		if m != nil {
			s.metrics = m
		}
	}
}

type tokenService struct {
	store         session.Store
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
	publisher     events.Publisher
	metrics       metrics.Recorder
}

func NewTokenService(store session.Store, cfg *config.SecuritySettings, opts ...Option) (Service, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets must be configured")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	s := &tokenService{
		store:         store,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
		publisher:     events.Nop(),
		metrics:       metrics.Nop(),
	}
	if cfg.AccessTTLMinutes > 0 {
		s.accessTTL = time.Duration(cfg.AccessTTLMinutes) * time.Minute
	}
	if cfg.RefreshTTLHours > 0 {
		s.refreshTTL = time.Duration(cfg.RefreshTTLHours) * time.Hour
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *tokenService) Issue(ctx context.Context, userID, role string, client ClientInfo) (*Pair, error) {
	if userID == "" {
		return nil, models.ErrInvalidParams
	}
	now := s.now()

	access, err := s.sign(userID, role, TypeAccess, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, role, TypeRefresh, now)
	if err != nil {
		return nil, err
	}

	record := &session.Session{
		ID:        uuid.NewString(),
		TokenHash: Hash(refresh.value),
		TokenID:   refresh.id,
		UserID:    userID,
		ExpiresAt: refresh.expiresAt,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		CreatedAt: now,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": record.ID,
	}).Debug("Credential pair issued")

	return &Pair{
		AccessToken:      access.value,
		RefreshToken:     refresh.value,
		TokenType:        "Bearer",
		AccessExpiresAt:  access.expiresAt,
		RefreshExpiresAt: refresh.expiresAt,
	}, nil
}

func (s *tokenService) Rotate(ctx context.Context, refreshToken string, client ClientInfo) (*Pair, error) {
	claims, err := s.parse(refreshToken, s.refreshSecret, TypeRefresh)
	if err != nil {
		s.metrics.RecordRotation(metrics.RotationInvalid)
		return nil, err
	}

	now := s.now()
	record, err := s.store.RevokeActive(ctx, Hash(refreshToken), session.ReasonRotated, now)
	if err != nil {
		if errors.Is(err, models.ErrZeroMatched) {
			return nil, s.handleReuse(ctx, claims, client)
		}
		s.metrics.RecordRotation(metrics.RotationFailures)
		return nil, err
	}

	pair, err := s.Issue(ctx, record.UserID, claims.Role, client)
	if err != nil {
		s.metrics.RecordRotation(metrics.RotationFailures)
		logrus.WithError(err).WithField("user_id", record.UserID).Error("Refresh credential redeemed but reissue failed")
		return nil, err
	}

	s.metrics.RecordRotation(metrics.RotationSuccess)
	logrus.WithFields(logrus.Fields{
		"user_id":    record.UserID,
		"session_id": record.ID,
	}).Info("Refresh credential rotated")
	return pair, nil
}

// handleReuse revokes the whole chain of a user whose already-redeemed
// credential was presented again.
func (s *tokenService) handleReuse(ctx context.Context, claims *Claims, client ClientInfo) error {
	userID := claims.UserID()
	count, err := s.store.RevokeAllForUser(ctx, userID, session.ReasonReuse, s.now())
	if err != nil {
		s.metrics.RecordRotation(metrics.RotationFailures)
		return err
	}

	s.metrics.RecordRotation(metrics.RotationReuse)
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"token_id":   claims.ID,
		"revoked":    count,
		"ip_address": client.IPAddress,
		"user_agent": client.UserAgent,
	}).Warn("Refresh credential reuse detected, all sessions revoked")

	msg := events.NewMessage(models.EventRefreshReuseDetected)
	msg.UserID = userID
	msg.Metadata = map[string]string{
		"revoked":   fmt.Sprintf("%d", count),
		"ipAddress": client.IPAddress,
	}
	events.Emit(ctx, s.publisher, msg)

	return models.ErrRefreshReuse
}

func (s *tokenService) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	if userID == "" {
		return 0, models.ErrInvalidParams
	}
	count, err := s.store.RevokeAllForUser(ctx, userID, reason, s.now())
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"reason":  reason,
		"revoked": count,
	}).Info("User sessions revoked")

	msg := events.NewMessage(models.EventSessionsRevoked)
	msg.UserID = userID
	msg.Metadata = map[string]string{"reason": reason}
	events.Emit(ctx, s.publisher, msg)
	return count, nil
}

func (s *tokenService) VerifyAccess(accessToken string) (*Claims, error) {
	return s.parse(accessToken, s.accessSecret, TypeAccess)
}

type signedToken struct {
	value     string
	id        string
	expiresAt time.Time
}

func (s *tokenService) sign(userID, role, tokenType string, now time.Time) (*signedToken, error) {
	ttl, secret := s.accessTTL, s.accessSecret
	if tokenType == TypeRefresh {
		ttl, secret = s.refreshTTL, s.refreshSecret
	}
	expiresAt := now.Add(ttl)

	jti := uuid.NewString()
	claims := &Claims{
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return &signedToken{value: signed, id: jti, expiresAt: expiresAt}, nil
}

func (s *tokenService) parse(tokenString string, secret []byte, tokenType string) (*Claims, error) {
	if tokenString == "" {
		return nil, models.ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		logrus.WithError(err).WithField("token_type", tokenType).Debug("Token validation failed")
		return nil, models.ErrInvalidToken
	}

	if claims.TokenType != tokenType || claims.Subject == "" {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// Hash is the lookup key stored in place of a refresh credential.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
