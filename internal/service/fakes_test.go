package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/repository"
)

type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	seq   int
	clock func() time.Time
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*domain.User{}, clock: time.Now}
}

func (m *memoryUsers) copyOf(u *domain.User) *domain.User {
	out := *u
	out.Permissions = u.Permissions.Clone()
	return &out
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrEmailTaken
		}
	}
	m.seq++
	user.ID = "user-" + strconv.Itoa(m.seq)
	user.CreatedAt = m.clock()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = m.copyOf(user)
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return m.copyOf(u), nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return m.copyOf(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryUsers) List(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0, len(m.byID))
	for i := 1; i <= m.seq; i++ {
		if u, ok := m.byID["user-"+strconv.Itoa(i)]; ok {
			out = append(out, m.copyOf(u))
		}
	}
	return out, nil
}

func (m *memoryUsers) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = m.clock()
	return m.copyOf(u), nil
}

func (m *memoryUsers) FindPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}
	return u.Principal(), nil
}

type rotatedToken struct {
	subjectID string
	successor string
	until     time.Time
}

type memoryRefreshTokens struct {
	mu      sync.Mutex
	tokens  map[string]string
	rotated map[string]rotatedToken
	seq     int
	clock   func() time.Time
}

func newMemoryRefreshTokens() *memoryRefreshTokens {
	return &memoryRefreshTokens{tokens: map[string]string{}, rotated: map[string]rotatedToken{}, clock: time.Now}
}

func (m *memoryRefreshTokens) Issue(_ context.Context, subjectID string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueLocked(subjectID), nil
}

func (m *memoryRefreshTokens) issueLocked(subjectID string) string {
	m.seq++
	token := "rt-" + strconv.Itoa(m.seq)
	m.tokens[token] = subjectID
	return token
}

func (m *memoryRefreshTokens) Rotate(_ context.Context, token string, _, grace time.Duration) (repository.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rotated[token]; ok && m.clock().Before(r.until) {
		return repository.Rotation{SubjectID: r.subjectID, Token: r.successor, Replayed: true}, nil
	}
	subject, ok := m.tokens[token]
	if !ok {
		return repository.Rotation{}, domain.ErrRefreshTokenNotFound
	}
	delete(m.tokens, token)
	next := m.issueLocked(subject)
	if grace > 0 {
		m.rotated[token] = rotatedToken{subjectID: subject, successor: next, until: m.clock().Add(grace)}
	}
	return repository.Rotation{SubjectID: subject, Token: next}, nil
}

func (m *memoryRefreshTokens) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	delete(m.rotated, token)
	return nil
}
