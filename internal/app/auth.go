package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kuex/internal/domain"
)

const (
	codeLifetime    = 5 * time.Minute
	resendInterval  = time.Minute
	resetLifetime   = 24 * time.Hour
	bcryptCost      = 12
	minPasswordLen  = 8
)

// AuthService covers registration with email verification, login and the
// password-reset flow. When the mailer is disabled (local development) the
// flows return their secrets in a debug field instead of failing.
type AuthService struct {
	users         domain.UserRepository
	verifications domain.VerificationRepository
	resetTokens   domain.ResetTokenRepository
	mailer        domain.Mailer
	tokens        *Tokens
	emailPattern  *regexp.Regexp
	devMode       bool
}

func NewAuthService(
	users domain.UserRepository,
	verifications domain.VerificationRepository,
	resetTokens domain.ResetTokenRepository,
	mailer domain.Mailer,
	tokens *Tokens,
	emailDomain string,
	devMode bool,
) *AuthService {
	return &AuthService{
		users:         users,
		verifications: verifications,
		resetTokens:   resetTokens,
		mailer:        mailer,
		tokens:        tokens,
		emailPattern:  regexp.MustCompile(`^[a-zA-Z0-9._-]+@` + regexp.QuoteMeta(emailDomain) + `$`),
		devMode:       devMode,
	}
}

type EmailCodeResult struct {
	Message   string `json:"message"`
	DebugCode string `json:"debugCode,omitempty"`
}

type ResetRequestResult struct {
	Message    string `json:"message"`
	DebugToken string `json:"debugToken,omitempty"`
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// RequestEmailCode sends a 6-digit verification code. Re-requests within a
// minute are throttled; any previous code for the email is discarded.
func (s *AuthService) RequestEmailCode(ctx context.Context, email string) (*EmailCodeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.emailPattern.MatchString(email) {
		return nil, domain.ErrBadEmailDomain
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if recent, err := s.verifications.FindRecent(ctx, email, time.Now().Add(-resendInterval)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	} else if recent != nil {
		return nil, domain.ErrResendThrottled
	}

	code, err := sixDigitCode()
	if err != nil {
		return nil, err
	}
	v := &domain.EmailVerification{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(codeLifetime),
	}
	if err := s.verifications.Replace(ctx, v); err != nil {
		return nil, err
	}

	if !s.mailer.Enabled() {
		return &EmailCodeResult{Message: "verification code issued", DebugCode: code}, nil
	}
	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		return nil, fmt.Errorf("send verification mail: %w", err)
	}
	return &EmailCodeResult{Message: "verification code sent"}, nil
}

// VerifyEmail marks the email verified when the code matches and is fresh.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	rec, err := s.verifications.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return err
	}
	if rec.Verified {
		return domain.ErrInvalidToken
	}
	if time.Now().After(rec.ExpiresAt) {
		return domain.ErrCodeExpired
	}
	if rec.Code != code {
		return domain.ErrCodeMismatch
	}
	return s.verifications.MarkVerified(ctx, rec.ID)
}

// Register creates the account; the email must have been verified first.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !s.emailPattern.MatchString(email) {
		return nil, domain.ErrBadEmailDomain
	}
	if len(in.Password) < minPasswordLen {
		return nil, domain.ErrWeakPassword
	}

	verified, err := s.verifications.FindVerified(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrEmailNotVerified
		}
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{Email: email, Name: strings.TrimSpace(in.Name), Password: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	// Consume the verification record; failure here is not fatal.
	_ = s.verifications.Delete(ctx, verified.ID)

	p := u.Profile()
	return &p, nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	p := u.Profile()
	return token, &p, nil
}

// RequestPasswordReset mails a single-use reset link to the account matching
// both email and name. Prior tokens for the user are discarded.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, name, baseURL string) (*ResetRequestResult, error) {
	u, err := s.users.FindByEmailAndName(ctx, strings.ToLower(email), strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(raw)
	t := &domain.PasswordResetToken{
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(resetLifetime),
	}
	if err := s.resetTokens.Replace(ctx, t); err != nil {
		return nil, err
	}

	if !s.mailer.Enabled() {
		out := &ResetRequestResult{Message: "reset token issued without email delivery"}
		if s.devMode {
			out.DebugToken = token
		}
		return out, nil
	}

	link := fmt.Sprintf("%s/password-reset/confirm?token=%s", strings.TrimRight(baseURL, "/"), token)
	if err := s.mailer.SendPasswordReset(ctx, u.Email, link); err != nil {
		return nil, fmt.Errorf("send reset mail: %w", err)
	}
	return &ResetRequestResult{Message: "password reset link sent"}, nil
}

// ValidateResetToken checks a reset token without consuming it.
func (s *AuthService) ValidateResetToken(ctx context.Context, token string) error {
	if _, err := s.resetTokens.FindValid(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return err
	}
	return nil
}

// ConfirmPasswordReset sets the new password and revokes the user's tokens.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return domain.ErrWeakPassword
	}
	t, err := s.resetTokens.FindValid(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return err
	}
	u, err := s.users.FindByID(ctx, t.UserID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return err
	}
	return s.resetTokens.DeleteForUser(ctx, u.ID)
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
