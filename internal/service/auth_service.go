package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// Common auth errors.
var (
	ErrUnknownStudent   = errors.New("no student is registered under this EPT id")
	ErrSessionNotActive = errors.New("no active session")
	ErrSessionReplaced  = errors.New("session replaced by a newer login")
)

// Claims extends JWT standard claims with the student identity.
type Claims struct {
	jwt.RegisteredClaims
	StudentID int    `json:"student_id"`
	EptID     string `json:"ept_id"`
	Name      string `json:"name"`
}

// StudentLookup resolves an EPT id to a student.
type StudentLookup interface {
	GetByEptID(ctx context.Context, eptID string) (*model.Student, error)
}

// AuthService handles student login, JWT issuance and session tracking.
// Identity is the EPT id alone; there are no passwords.
type AuthService struct {
	cfg      *config.Config
	rdb      *redis.Client
	students StudentLookup
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, students StudentLookup) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, students: students, now: time.Now}
}

// Login issues a token for the student behind eptID. A new login replaces
// the previous session, so a student who lost their tab can get back in.
func (s *AuthService) Login(ctx context.Context, eptID string) (*model.StudentLoginResponse, error) {
	student, err := s.students.GetByEptID(ctx, eptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownStudent
		}
		return nil, fmt.Errorf("lookup student: %w", err)
	}

	token, jti, err := s.IssueToken(student)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		key := config.CacheKey.StudentSessionKey(student.EptID)
		if err := s.rdb.Set(ctx, key, jti, s.cfg.JWTExpiry).Err(); err != nil {
			return nil, fmt.Errorf("store session: %w", err)
		}
	}

	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// IssueToken signs a JWT for student and returns it with its id.
func (s *AuthService) IssueToken(student *model.Student) (string, string, error) {
	jti := uuid.New().String()
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   student.EptID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		StudentID: student.ID,
		EptID:     student.EptID,
		Name:      student.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.EptID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateSession checks that the token's id is the student's active session.
func (s *AuthService) ValidateSession(ctx context.Context, claims *Claims) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentSessionKey(claims.EptID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotActive
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != claims.ID {
		return ErrSessionReplaced
	}
	return nil
}

// Logout ends the student's session.
func (s *AuthService) Logout(ctx context.Context, eptID string) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(eptID)).Err()
}
