package members_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-members"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserStore implements members.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Register(ctx context.Context, user *members.User) (*members.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*members.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*members.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*members.User), args.Error(1)
}

func (m *MockUserStore) UpdateRole(ctx context.Context, id uuid.UUID, role members.UserRole) (*members.User, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*members.User), args.Error(1)
}

func (m *MockUserStore) ListAll(ctx context.Context) ([]*members.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*members.User), args.Error(1)
}

// MockSessionStore implements members.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Get(ctx context.Context, id uuid.UUID) (*members.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*members.Session), args.Error(1)
}

func (m *MockSessionStore) Put(ctx context.Context, session *members.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// memoryUsers is an in-memory credential store for end-to-end flow tests.
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*members.User
	byEmail map[string]*members.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:    map[uuid.UUID]*members.User{},
		byEmail: map[string]*members.User{},
	}
}

func (s *memoryUsers) Register(_ context.Context, user *members.User) (*members.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return nil, members.ErrDuplicateEmail
	}

	record := *user
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = members.RoleMember
	}

	s.byID[record.ID] = &record
	s.byEmail[record.Email] = &record

	out := record
	return &out, nil
}

func (s *memoryUsers) GetByEmail(_ context.Context, email string) (*members.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byEmail[email]
	if !ok {
		return nil, members.ErrUserNotFound
	}

	out := *user
	return &out, nil
}

func (s *memoryUsers) UpdateRole(_ context.Context, id uuid.UUID, role members.UserRole) (*members.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, members.ErrUserNotFound
	}

	user.Role = role

	out := *user
	return &out, nil
}

func (s *memoryUsers) ListAll(_ context.Context) ([]*members.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*members.User, 0, len(s.byID))
	for _, user := range s.byID {
		record := *user
		out = append(out, &record)
	}
	return out, nil
}

// memorySessions is an in-memory session store enforcing expiry on read.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*members.Session
	now      func() time.Time
}

func newMemorySessions(clock func() time.Time) *memorySessions {
	if clock == nil {
		clock = time.Now
	}
	return &memorySessions{
		sessions: map[uuid.UUID]*members.Session{},
		now:      clock,
	}
}

func (s *memorySessions) Get(_ context.Context, id uuid.UUID) (*members.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, members.ErrSessionNotFound
	}

	if session.Expired(s.now()) {
		delete(s.sessions, id)
		return nil, members.ErrSessionNotFound
	}

	out := *session
	return &out, nil
}

func (s *memorySessions) Put(_ context.Context, session *members.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *session
	s.sessions[record.ID] = &record
	return nil
}

func (s *memorySessions) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}
