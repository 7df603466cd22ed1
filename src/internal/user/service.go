package user

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/fleet"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/session"
	"loadhub-core-svc/src/internal/token"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const defaultResetTTL = time.Hour

type Service interface {
	Register(ctx context.Context, req *RegisterRequest, client token.ClientInfo) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest, client token.ClientInfo) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, client token.ClientInfo) (*token.Pair, error)
	Logout(ctx context.Context, userID string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	GetAllUsers(ctx context.Context, req *GetAllUsersRequest) (*GetAllUsersResponse, error)
	ActivateUser(ctx context.Context, userID string) error
	SuspendUser(ctx context.Context, userID string) error
}

type Option func(*userService)

func WithClock(now func() time.Time) Option {
	return func(s *userService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *userService) {
		if p != nil {
			s.publisher = p
		}
	}
}

type userService struct {
	userRepository Repository
	fleet          fleet.Service
	tokens         token.Service
	cfg            *config.Configuration
	publisher      events.Publisher
	now            func() time.Time
}

func NewUserService(userRepository Repository, fleetService fleet.Service, tokens token.Service, cfg *config.Configuration, opts ...Option) Service {
	s := &userService{
		userRepository: userRepository,
		fleet:          fleetService,
		tokens:         tokens,
		cfg:            cfg,
		publisher:      events.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) Register(ctx context.Context, req *RegisterRequest, client token.ClientInfo) (*AuthResponse, error) {
	if err := s.validateRegister(req); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &User{
		ID:           primitive.NewObjectID().Hex(),
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: passwordHash,
		Role:         req.Role,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepository.Insert(ctx, u); err != nil {
		return nil, err
	}

	s.createRoleProfile(ctx, u)

	pair, err := s.tokens.Issue(ctx, u.ID, u.Role, client)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": u.ID,
		"role":    u.Role,
	}).Info("User registered")

	return &AuthResponse{User: u.ToProfile(), Tokens: pair}, nil
}

func (s *userService) validateRegister(req *RegisterRequest) error {
	if req == nil {
		return models.ErrInvalidParams
	}
	var problems []string
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !strings.Contains(req.Email, "@") {
		problems = append(problems, "a valid email is required")
	}
	if len(req.Password) < s.minPasswordLength() {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", s.minPasswordLength()))
	}
	if !isSelfServiceRole(req.Role) {
		problems = append(problems, "role must be CUSTOMER, OWNER or DRIVER")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, ", "))
	}
	return nil
}

// createRoleProfile gives owners and drivers their fleet profile. A failure is
// logged and does not undo the registration.
func (s *userService) createRoleProfile(ctx context.Context, u *User) {
	var err error
	switch u.Role {
	case models.RoleOwner:
		_, err = s.fleet.CreateOwnerProfile(ctx, u.ID, u.Name+"'s Transport")
	case models.RoleDriver:
		_, err = s.fleet.CreateDriverProfile(ctx, u.ID, fmt.Sprintf("TEMP-%d", s.now().UnixMilli()))
	default:
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Error("Failed to create profile for user")
	}
}

func (s *userService) Login(ctx context.Context, req *LoginRequest, client token.ClientInfo) (*AuthResponse, error) {
	if req == nil || req.Email == "" || req.Password == "" {
		return nil, models.ErrInvalidParams
	}

	u, err := s.userRepository.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidLogin
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		logrus.WithField("user_id", u.ID).Info("Login rejected: wrong password")
		return nil, models.ErrInvalidLogin
	}
	if !u.IsActive() {
		return nil, models.ErrUserSuspended
	}

	now := s.now().UTC()
	if err := s.userRepository.TouchLogin(ctx, u.ID, now); err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Warn("Failed to record login time")
	} else {
		u.LastLoginAt = &now
	}

	pair, err := s.tokens.Issue(ctx, u.ID, u.Role, client)
	if err != nil {
		return nil, err
	}

	logrus.WithField("user_id", u.ID).Info("User logged in")
	return &AuthResponse{User: u.ToProfile(), Tokens: pair}, nil
}

func (s *userService) Refresh(ctx context.Context, refreshToken string, client token.ClientInfo) (*token.Pair, error) {
	if refreshToken == "" {
		return nil, models.ErrInvalidParams
	}
	return s.tokens.Rotate(ctx, refreshToken, client)
}

func (s *userService) Logout(ctx context.Context, userID string) error {
	_, err := s.tokens.RevokeAll(ctx, userID, session.ReasonLogout)
	return err
}

// ForgotPassword stores a single-use reset credential and publishes it for
// delivery. Unknown emails succeed silently.
func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return models.ErrInvalidParams
	}

	u, err := s.userRepository.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			logrus.Debug("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	resetToken := uuid.NewString()
	now := s.now().UTC()
	if err := s.userRepository.SetResetToken(ctx, u.ID, token.Hash(resetToken), now.Add(s.resetTTL()), now); err != nil {
		return err
	}

	// The raw token travels only in the broker payload so the mail consumer can
	// build the reset link. Consumers must not log message bodies: the redaction
	// hook covers logrus fields, not published payloads.
	msg := events.NewMessage(models.EventPasswordResetRequested)
	msg.UserID = u.ID
	msg.Metadata = map[string]string{
		"email":      u.Email,
		"resetToken": resetToken,
	}
	events.Emit(ctx, s.publisher, msg)

	logrus.WithField("user_id", u.ID).Info("Password reset requested")
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return models.ErrInvalidParams
	}
	if len(newPassword) < s.minPasswordLength() {
		return fmt.Errorf("%w: password must be at least %d characters", models.ErrValidation, s.minPasswordLength())
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	u, err := s.userRepository.ConsumeResetToken(ctx, token.Hash(resetToken), passwordHash, s.now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrZeroMatched) {
			return models.ErrInvalidToken
		}
		return err
	}

	if _, err := s.tokens.RevokeAll(ctx, u.ID, session.ReasonPasswordSet); err != nil {
		return err
	}

	logrus.WithField("user_id", u.ID).Info("Password reset completed")
	return nil
}

func (s *userService) GetAllUsers(ctx context.Context, req *GetAllUsersRequest) (*GetAllUsersResponse, error) {
	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.MinQueryLimit
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if s.cfg.Search.MaxQueryLimit > 0 && req.Limit > s.cfg.Search.MaxQueryLimit {
		req.Limit = s.cfg.Search.MaxQueryLimit
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	if _, err := models.PageSkip(req.Page, req.Limit); err != nil {
		return nil, err
	}

	if req.Role != "" && !isValidRole(req.Role) {
		return nil, fmt.Errorf("%w: invalid role filter", models.ErrValidation)
	}
	if req.Status != "" && !isValidStatus(req.Status) {
		return nil, models.ErrInvalidUserState
	}

	logrus.WithFields(logrus.Fields{
		"page":   req.Page,
		"limit":  req.Limit,
		"role":   req.Role,
		"status": req.Status,
		"search": req.Search,
	}).Debug("Getting all users")

	users, totalCount, err := s.userRepository.GetAllUsers(ctx, req)
	if err != nil {
		logrus.WithError(err).Error("Failed to get users from repository")
		return nil, err
	}

	profiles := make([]*Profile, len(users))
	for i, user := range users {
		profiles[i] = user.ToProfile()
	}

	return &GetAllUsersResponse{
		Users:      profiles,
		TotalCount: totalCount,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: int(math.Ceil(float64(totalCount) / float64(req.Limit))),
	}, nil
}

func (s *userService) ActivateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrInvalidParams
	}
	return s.userRepository.UpdateStatus(ctx, userID, StatusActive, s.now().UTC())
}

// SuspendUser blocks future logins and revokes every live refresh session.
func (s *userService) SuspendUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrInvalidParams
	}
	if err := s.userRepository.UpdateStatus(ctx, userID, StatusSuspended, s.now().UTC()); err != nil {
		return err
	}
	_, err := s.tokens.RevokeAll(ctx, userID, session.ReasonSuspended)
	return err
}

func (s *userService) hashPassword(password string) (string, error) {
	cost := s.cfg.Security.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return string(hash), nil
}

func (s *userService) minPasswordLength() int {
	if s.cfg.Security.MinPasswordLength > 0 {
		return s.cfg.Security.MinPasswordLength
	}
	return 6
}

func (s *userService) resetTTL() time.Duration {
	if s.cfg.Security.ResetTTLMinutes > 0 {
		return time.Duration(s.cfg.Security.ResetTTLMinutes) * time.Minute
	}
	return defaultResetTTL
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
