package domain

import "time"

type User struct {
	ID        string
	Email     string
	Name      string
	Password  string // bcrypt hash, never serialized
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the user shape exposed to clients (password stripped).
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

// EmailVerification is a pending 6-digit registration code.
type EmailVerification struct {
	ID         string
	Email      string
	Code       string
	ExpiresAt  time.Time
	Verified   bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// PasswordResetToken is a single-use reset link token, valid for 24 hours.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MypageData is the authenticated user's profile plus every report they liked.
type MypageData struct {
	User              Profile          `json:"user"`
	SavedReports      []ReportListItem `json:"savedReports"`
	SavedReportsCount int              `json:"savedReportsCount"`
}
