package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classroll/internal/auth"
)

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrStudentNotFound    = errors.New("student not found")
	ErrInvalidToken       = errors.New("invalid or revoked refresh token")
	ErrMissingField       = errors.New("email, password and full name are required")
)

// RosterLookup finds the roster entry a student account must match.
type RosterLookup interface {
	StudentMatches(ctx context.Context, name, email, studentID string) (bool, error)
}

// Session is the result of a successful sign-in.
type Session struct {
	Tokens  auth.TokenPair `json:"tokens"`
	Profile Profile        `json:"profile"`
}

// Service implements sign-up, sign-in and token rotation.
type Service struct {
	repo   *Repository
	roster RosterLookup
	issuer *auth.Issuer
	log    *zap.Logger
	now    func() time.Time
}

// NewService wires the account service.
func NewService(repo *Repository, roster RosterLookup, issuer *auth.Issuer, log *zap.Logger) *Service {
	return &Service{repo: repo, roster: roster, issuer: issuer, log: log, now: time.Now}
}

// SignUpTeacher creates a teacher account.
func (s *Service) SignUpTeacher(ctx context.Context, email, password, fullName string) (Profile, error) {
	return s.create(ctx, email, password, fullName, auth.RoleTeacher)
}

// SignUpStudent creates a student account, but only when the teacher has
// already put a student with exactly this name, email and student id on a roster.
func (s *Service) SignUpStudent(ctx context.Context, email, password, fullName, studentID string) (Profile, error) {
	email, fullName, studentID = strings.TrimSpace(email), strings.TrimSpace(fullName), strings.TrimSpace(studentID)
	if studentID == "" {
		return Profile{}, ErrStudentNotFound
	}
	ok, err := s.roster.StudentMatches(ctx, fullName, email, studentID)
	if err != nil {
		return Profile{}, fmt.Errorf("roster lookup: %w", err)
	}
	if !ok {
		s.log.Info("student sign-up rejected", zap.String("email", email), zap.String("student_id", studentID))
		return Profile{}, ErrStudentNotFound
	}
	return s.create(ctx, email, password, fullName, auth.RoleStudent)
}

// normalizeEmail is the form account emails are stored and looked up in.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) create(ctx context.Context, email, password, fullName, role string) (Profile, error) {
	email, fullName = normalizeEmail(email), strings.TrimSpace(fullName)
	if email == "" || password == "" || fullName == "" {
		return Profile{}, ErrMissingField
	}
	taken, err := s.repo.EmailTaken(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	if taken {
		return Profile{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Profile{}, err
	}

	now := s.now().UTC()
	u := User{ID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: now}
	p := Profile{UserID: u.ID, Email: email, FullName: fullName, Role: role, CreatedAt: now}
	if err := s.repo.CreateUser(ctx, u, p); err != nil {
		return Profile{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("account created", zap.String("user_id", u.ID), zap.String("role", role))
	return p, nil
}

// SignIn checks credentials and issues a token pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, p, err := s.repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Session{}, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, *p)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	live, err := s.repo.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	if !live {
		return Session{}, ErrInvalidToken
	}
	p, err := s.repo.ProfileByUserID(ctx, claims.UserID())
	if err != nil {
		return Session{}, err
	}
	if p == nil {
		return Session{}, ErrInvalidToken
	}
	return s.issue(ctx, *p)
}

// SignOut revokes the refresh token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	_, err := s.repo.RevokeRefreshToken(ctx, refreshToken)
	return err
}

// Profile returns the profile of userID, or nil.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.ProfileByUserID(ctx, userID)
}

func (s *Service) issue(ctx context.Context, p Profile) (Session, error) {
	tokens, err := s.issuer.Issue(p.UserID, p.Email, p.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.repo.SaveRefreshToken(ctx, p.UserID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		return Session{}, fmt.Errorf("save refresh token: %w", err)
	}
	return Session{Tokens: tokens, Profile: p}, nil
}
