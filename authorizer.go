package members

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Authorizer drives the login/logout/promote/demote state transitions and
// the role guards. It holds no mutable state of its own; users live in
// the credential store and sessions in the session store.
type Authorizer struct {
	users    UserStore
	sessions SessionStore
	hasher   PasswordAuthenticator
	ttl      time.Duration
	now      func() time.Time
	logger   Logger
	activity ActivitySink
}

// AuthorizerOption customizes Authorizer construction.
type AuthorizerOption func(*Authorizer)

// NewAuthorizer returns a new Authorizer over the given stores.
func NewAuthorizer(users UserStore, sessions SessionStore, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		users:    users,
		sessions: sessions,
		hasher:   bcryptAuthenticator{},
		ttl:      SessionTTL,
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

func (a *Authorizer) WithLogger(logger Logger) *Authorizer {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithSessionTTL overrides the session time to live.
func WithSessionTTL(ttl time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithPasswordAuthenticator overrides the hash/compare implementation.
func WithPasswordAuthenticator(hasher PasswordAuthenticator) AuthorizerOption {
	return func(a *Authorizer) {
		if hasher != nil {
			a.hasher = hasher
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		if clock != nil {
			a.now = clock
		}
	}
}

// WithActivitySink routes audit events to the given sink.
func WithActivitySink(sink ActivitySink) AuthorizerOption {
	return func(a *Authorizer) {
		a.activity = normalizeActivitySink(sink)
	}
}

// RegisterMessage carries the signup input.
type RegisterMessage struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterMessage) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required),
		)
	}, "Invalid signup payload")
}

// Register validates the signup input, hashes the password, and persists
// the user with the default member role. A unique constraint hit on the
// email surfaces as ErrDuplicateEmail; nothing is persisted on failure.
func (a *Authorizer) Register(ctx context.Context, msg RegisterMessage) (*User, error) {
	if err := msg.Validate(); err != nil {
		a.logger.Debug("register validation failed", "error", err)
		return nil, err
	}

	hash, err := a.hasher.HashPassword(msg.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user, err := a.users.Register(ctx, &User{
		Name:         msg.Name,
		Email:        msg.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			a.logger.Info("register duplicate email", "email", msg.Email)
			return nil, ErrDuplicateEmail
		}
		a.logger.Error("register persist error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist user")
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignup,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	return user, nil
}

// Login verifies the credentials and issues a fresh session with the
// user's name and role cached as of this moment.
func (a *Authorizer) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) || errors.Is(err, ErrUserNotFound) {
			a.logger.Info("login unknown email", "email", email)
			a.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Email:     email,
				Metadata:  map[string]any{"reason": "unknown_email"},
			})
			return nil, ErrUserNotFound
		}
		a.logger.Error("login lookup error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := a.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			a.logger.Info("login password mismatch", "user_id", user.ID)
			a.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				UserID:    user.ID.String(),
				Email:     email,
				Metadata:  map[string]any{"reason": "password_mismatch"},
			})
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}

	user.EnsureRole()
	session := NewSession(user, a.now(), a.ttl)

	if err := a.sessions.Put(ctx, session); err != nil {
		a.logger.Error("login session persist error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	return session, nil
}

// EstablishSession issues a session for an already-verified user. Signup
// uses it so a fresh registration lands logged in on the members page.
func (a *Authorizer) EstablishSession(ctx context.Context, user *User) (*Session, error) {
	user.EnsureRole()
	session := NewSession(user, a.now(), a.ttl)

	if err := a.sessions.Put(ctx, session); err != nil {
		a.logger.Error("session persist error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	return session, nil
}

// Logout destroys the session unconditionally. Destroying an absent
// session is not an error.
func (a *Authorizer) Logout(ctx context.Context, token string) error {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil
	}

	if err := a.sessions.Delete(ctx, id); err != nil {
		a.logger.Error("logout session delete error", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	a.recordActivity(ctx, ActivityEvent{EventType: ActivityEventLogout})

	return nil
}

// SessionFromToken resolves an opaque cookie token to a live session.
// Missing, malformed, or expired tokens resolve to nil: the request is
// simply anonymous.
func (a *Authorizer) SessionFromToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	id, err := uuid.Parse(token)
	if err != nil {
		return nil, nil
	}

	session, err := a.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		a.logger.Error("session lookup error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve session")
	}

	if session == nil || session.Expired(a.now()) {
		return nil, nil
	}

	return session, nil
}

// IsLoggedIn is true iff the session exists, is unexpired, and its
// logged-in flag is set.
func (a *Authorizer) IsLoggedIn(session *Session) bool {
	if session == nil {
		return false
	}
	return session.LoggedIn && !session.Expired(a.now())
}

// IsAdmin is true iff the session is logged in and its cached role is
// admin. The cached role reflects the role at login time.
func (a *Authorizer) IsAdmin(session *Session) bool {
	return a.IsLoggedIn(session) && session.Role == RoleAdmin
}

// RequireAdmin is the single access-control gate: ErrUnauthenticated when
// the session is not logged in, ErrForbidden when it is logged in without
// the admin role.
func (a *Authorizer) RequireAdmin(session *Session) error {
	if !a.IsLoggedIn(session) {
		return ErrUnauthenticated
	}

	if session.Role != RoleAdmin {
		return ErrForbidden
	}

	return nil
}

// Promote sets the target user's role to admin. Already-issued sessions
// for the target keep their cached role until they next log in.
func (a *Authorizer) Promote(ctx context.Context, session *Session, targetID uuid.UUID) error {
	return a.changeRole(ctx, session, targetID, RoleAdmin)
}

// Demote sets the target user's role to member.
func (a *Authorizer) Demote(ctx context.Context, session *Session, targetID uuid.UUID) error {
	return a.changeRole(ctx, session, targetID, RoleMember)
}

func (a *Authorizer) changeRole(ctx context.Context, session *Session, targetID uuid.UUID, role UserRole) error {
	if err := a.RequireAdmin(session); err != nil {
		return err
	}

	if _, err := a.users.UpdateRole(ctx, targetID, role); err != nil {
		if goerrors.IsNotFound(err) || errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		a.logger.Error("role update error", "target_id", targetID, "role", role, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user role")
	}

	a.logger.Info("role updated", "target_id", targetID, "role", role)

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRoleChanged,
		ActorID:   session.Token(),
		UserID:    targetID.String(),
		ToRole:    role,
	})

	return nil
}

// ListUsers returns every user for the admin page. Read-only.
func (a *Authorizer) ListUsers(ctx context.Context, session *Session) ([]*User, error) {
	if err := a.RequireAdmin(session); err != nil {
		return nil, err
	}

	users, err := a.users.ListAll(ctx)
	if err != nil {
		a.logger.Error("list users error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}

	return users, nil
}
