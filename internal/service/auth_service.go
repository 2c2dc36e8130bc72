package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// SessionTTL is how long a token stays valid after sign-in.
	SessionTTL = 24 * time.Hour
	// expiringSoonWindow flags sessions that should be refreshed.
	expiringSoonWindow = 30 * time.Minute

	minUsernameLen = 3
	minPasswordLen = 6
	defaultRole    = "User"
)

// Domain errors for auth flows.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
)

type AuthConfig struct {
	SigningKey string
}

// AuthService issues signed tokens and tracks them in the session store.
// The signature only proves the token came from this process; validity is
// decided by the stored creation time.
type AuthService struct {
	sessions   repository.SessionRepo
	journal    *journal
	signingKey []byte
	now        func() time.Time
}

func NewAuthService(sessions repository.SessionRepo, j *journal, cfg AuthConfig) *AuthService {
	return &AuthService{
		sessions:   sessions,
		journal:    j,
		signingKey: []byte(cfg.SigningKey),
		now:        time.Now,
	}
}

// SignIn accepts any username of at least 3 and password of at least 6 characters.
func (s *AuthService) SignIn(ctx context.Context, p SignInParams) (models.Session, error) {
	username := strings.TrimSpace(p.Username)
	if utf8.RuneCountInString(username) < minUsernameLen {
		return models.Session{}, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidCredentials, minUsernameLen)
	}
	if utf8.RuneCountInString(p.Password) < minPasswordLen {
		return models.Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLen)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	token, err := s.issueToken(username, now)
	if err != nil {
		return models.Session{}, fmt.Errorf("issue token: %w", err)
	}

	sess := models.Session{
		Token:     token,
		CreatedAt: now,
		Remember:  p.Remember,
		Profile:   newProfile(username),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return models.Session{}, err
	}
	if _, err := s.sessions.DeleteCreatedBefore(ctx, now.Add(-SessionTTL)); err != nil {
		s.journal.logger().Warnw("session_purge_failed", "err", err)
	}

	s.journal.append(ctx, models.EventLogin, "User "+username+" signed in", map[string]any{"username": username})
	return sess, nil
}

// SignOut forgets the token. Unknown tokens are not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	s.journal.append(ctx, models.EventLogout, "User "+sess.Profile.Username+" signed out", map[string]any{"username": sess.Profile.Username})
	return nil
}

// Authenticate checks the signature, then the stored session. A session
// older than SessionTTL is deleted and reported as expired.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.AuthStatus, error) {
	if _, err := s.parseToken(token); err != nil {
		return models.AuthStatus{}, err
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return models.AuthStatus{}, err
	}
	if sess == nil {
		return models.AuthStatus{}, ErrInvalidToken
	}

	now := s.now()
	age := now.Sub(sess.CreatedAt)
	if age > SessionTTL {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.journal.logger().Warnw("session_delete_failed", "err", err)
		}
		return models.AuthStatus{}, ErrSessionExpired
	}

	expires := sess.CreatedAt.Add(SessionTTL)
	remaining := expires.Sub(now)
	return models.AuthStatus{
		Profile:      sess.Profile,
		IssuedAt:     sess.CreatedAt,
		ExpiresAt:    expires,
		ExpiringSoon: remaining > 0 && remaining < expiringSoonWindow,
	}, nil
}

// helper: issue a signed JWT for a user
func (s *AuthService) issueToken(username string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject:  username,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
	})
	return token.SignedString(s.signingKey)
}

// parseToken verifies the signature only; expiry is checked against the session store.
func (s *AuthService) parseToken(accessToken string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

var nameSeparators = regexp.MustCompile(`[._\-\s]+`)

// newProfile derives a display profile from the username: "jane.doe" → "Jane Doe", "JD".
func newProfile(username string) models.Profile {
	parts := lo.Compact(nameSeparators.Split(username, -1))

	var name, avatar string
	if len(parts) > 1 {
		name = capitalize(parts[0]) + " " + capitalize(parts[1])
		avatar = strings.ToUpper(firstRune(parts[0]) + firstRune(parts[1]))
	} else {
		name = capitalize(username)
		avatar = strings.ToUpper(firstRunes(username, 2))
	}
	return models.Profile{Name: name, Username: username, Avatar: avatar, Role: defaultRole}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}

func firstRune(s string) string { return firstRunes(s, 1) }

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
