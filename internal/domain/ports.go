package domain

import (
	"context"
	"time"
)

type ReportRepository interface {
	Count(ctx context.Context, q ReportQuery) (int64, error)
	// List returns one page of reports with the school reference resolved
	// (school, country and continent joined in).
	List(ctx context.Context, q ReportQuery) ([]Report, error)
	// FindAndIncrementViews atomically bumps viewCount and returns the
	// post-increment document, resolved.
	FindAndIncrementViews(ctx context.Context, id string) (*Report, error)
	FindLikes(ctx context.Context, id string) (*LikeState, error)
	// AddLike / RemoveLike are single-document atomic updates
	// ($addToSet/$pull combined with $inc); both return the new like count.
	AddLike(ctx context.Context, reportID, userID string) (int, error)
	RemoveLike(ctx context.Context, reportID, userID string) (int, error)
	ListLikedBy(ctx context.Context, userID string) ([]Report, error)
	// DistinctSchools lists every school at least one report references,
	// with country/continent names, for the filter sidebar.
	DistinctSchools(ctx context.Context) ([]SchoolMeta, error)
}

type SchoolRepository interface {
	// MatchIDs resolves a school-attribute filter to the ids of matching schools.
	MatchIDs(ctx context.Context, f SchoolFilter) ([]string, error)
	Count(ctx context.Context, f SchoolFilter) (int64, error)
	List(ctx context.Context, f SchoolFilter, sort string, skip, limit int64) ([]SchoolView, error)
	FindByID(ctx context.Context, id string) (*SchoolView, error)
	Locations(ctx context.Context) ([]Location, error)
	Upsert(ctx context.Context, s School) error
}

type GeoRepository interface {
	FindCountry(ctx context.Context, name string) (*Country, error)
	FindContinent(ctx context.Context, name string) (*Continent, error)
	CountryIDsByContinent(ctx context.Context, continentID string) ([]string, error)
	UpsertContinent(ctx context.Context, name string) (string, error)
	UpsertCountry(ctx context.Context, name, continentID string) (string, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailAndName(ctx context.Context, email, name string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type VerificationRepository interface {
	FindByEmail(ctx context.Context, email string) (*EmailVerification, error)
	FindRecent(ctx context.Context, email string, since time.Time) (*EmailVerification, error)
	FindVerified(ctx context.Context, email string) (*EmailVerification, error)
	// Replace removes any prior codes for the email and stores v.
	Replace(ctx context.Context, v *EmailVerification) error
	MarkVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type ResetTokenRepository interface {
	// Replace removes any prior tokens for the user and stores t.
	Replace(ctx context.Context, t *PasswordResetToken) error
	FindValid(ctx context.Context, token string) (*PasswordResetToken, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// Cache is the shared key/value + set store. Every method is best-effort at
// the call sites that serve reads: a failed Get is a miss, a failed write is
// logged and ignored.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPattern deletes every key matching the glob pattern except the ones
	// listed in keep. Returns the number of keys removed.
	DelPattern(ctx context.Context, pattern string, keep ...string) (int, error)
	SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SRem(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Mailer sends outbound notification email. A disabled mailer makes auth
// flows fall back to returning debug payloads instead of failing.
type Mailer interface {
	Enabled() bool
	SendVerificationCode(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}
