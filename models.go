package members

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's access tier
type UserRole = string

const (
	// RoleMember is the default role (i.e. members area only)
	RoleMember UserRole = "member"
	// RoleAdmin can additionally list, promote, and demote users
	RoleAdmin UserRole = "admin"
)

// User is the identity record owned by the credential store
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureRole backfills the default role on records that predate the
// role column carrying a value.
func (u *User) EnsureRole() {
	if u.Role == "" {
		u.Role = RoleMember
	}
}

// IsAdmin reports whether the stored record carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// SessionTTL is how long a session stays valid after login. The cookie
// max-age mirrors this value.
const SessionTTL = time.Hour

// Session is the server-side record behind the opaque cookie token. The
// ID doubles as the token; name and role are cached from the User at
// login time and never updated for a live session.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	LoggedIn      bool      `bun:"logged_in,notnull" json:"logged_in"`
	Name          string    `bun:"name,notnull" json:"name,omitempty"`
	Role          UserRole  `bun:"user_role,notnull" json:"user_role,omitempty"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// Token returns the opaque client-held token for this session.
func (s Session) Token() string {
	return s.ID.String()
}

// Expired reports whether the session is past its expiry at the given
// instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// NewSession builds the session issued at login, caching the user's name
// and role.
func NewSession(user *User, now time.Time, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Session{
		ID:        uuid.New(),
		LoggedIn:  true,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: now.Add(ttl),
	}
}
