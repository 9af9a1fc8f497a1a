package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountSuspended   = errors.New("this account has been suspended")
	ErrForbidden          = errors.New("insufficient permissions for this operation")
	ErrSelfDelete         = errors.New("users cannot delete their own account")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const minPasswordLen = 8

// Claims is the JWT payload issued on login and checked on every
// authenticated request.
type Claims struct {
	UserID int64  `json:"uid"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

type Service struct {
	repo   Repository
	secret []byte
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
}

func NewService(repo Repository, secret string, ttl time.Duration, loc *time.Location) *Service {
	return &Service{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		loc:    loc,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login verifies the credentials and issues a signed token carrying the
// user's role. Suspended accounts are rejected even with a valid password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status == StatusSuspended {
		return nil, ErrAccountSuspended
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID: u.ID,
		Name:   u.Name,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if err := s.repo.StampLogin(ctx, u.ID, now); err != nil {
		log.Warn().Err(err).Int64("user_id", u.ID).Msg("stamp last login")
	}

	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < minPasswordLen {
		return ErrWeakPassword
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// CreateUserInput carries the fields an admin supplies for a new user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// CreateUser enforces the role hierarchy: SUPER_ADMIN may create ADMIN and
// CALL_AGENT accounts, ADMIN may create CALL_AGENT only.
func (s *Service) CreateUser(ctx context.Context, actor Role, in CreateUserInput) (*User, error) {
	if !actor.CanManage(in.Role) {
		return nil, ErrForbidden
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         in.Role,
		Status:       StatusActive,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUserInput holds the optional fields of a user update. Nil means
// leave unchanged.
type UpdateUserInput struct {
	Name   *string
	Email  *string
	Role   *Role
	Status *Status
}

// UpdateUser applies in to the target user. The actor must outrank both the
// target's current role and any role being assigned.
func (s *Service) UpdateUser(ctx context.Context, actor Role, targetID int64, in UpdateUserInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(u.Role) {
		return nil, ErrForbidden
	}
	if in.Role != nil && !actor.CanManage(*in.Role) {
		return nil, ErrForbidden
	}

	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes a user. Self-deletion is refused so an admin cannot
// lock themselves out mid-session.
func (s *Service) DeleteUser(ctx context.Context, actorID int64, actor Role, targetID int64) error {
	if actorID == targetID {
		return ErrSelfDelete
	}
	u, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !actor.CanManage(u.Role) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, targetID)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]User, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Dashboard summarises agents and today's appointment load. Today is the
// calendar day in the business timezone.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return s.repo.DashboardStats(ctx, dayStart, dayStart.Add(24*time.Hour))
}
