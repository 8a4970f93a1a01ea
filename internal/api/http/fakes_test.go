package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/service"
)

type fakeAuth struct {
	mu         sync.Mutex
	tokens     *auth.TokenManager
	users      map[string]*domain.User
	passwords  map[string]string
	refresh    map[string]string
	rotated    map[string]string
	revoked    []string
	identities auth.IdentityVerifier
	production bool
	ttl        time.Duration
	seq        int
}

func newFakeAuth(tokens *auth.TokenManager) *fakeAuth {
	return &fakeAuth{
		tokens:     tokens,
		users:      map[string]*domain.User{},
		passwords:  map[string]string{},
		refresh:    map[string]string{},
		rotated:    map[string]string{},
		identities: auth.NewJWTIdentityVerifier(map[string]string{"github": githubSecret}, ""),
		ttl:        time.Hour,
	}
}

func (f *fakeAuth) addUser(id, email, password string, role domain.Role, perms ...domain.Permission) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &domain.User{ID: id, Name: id, Email: email, Role: role, Permissions: domain.NewPermissionSet(perms...), Provider: service.ProviderCredentials}
	f.users[id] = u
	f.passwords[email] = password
	return u
}

func (f *fakeAuth) byEmail(email string) *domain.User {
	for _, u := range f.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (f *fakeAuth) session(u *domain.User, refreshToken string) (*service.Session, error) {
	now := time.Now()
	cred, err := domain.NewCredential(u.ID, u.Role, u.Permissions, now, now.Add(f.ttl), refreshToken)
	if err != nil {
		return nil, err
	}
	token, err := f.tokens.Sign(cred)
	if err != nil {
		return nil, err
	}
	return &service.Session{User: u, Credential: cred, Token: token}, nil
}

func (f *fakeAuth) issue(u *domain.User) string {
	f.seq++
	token := fmt.Sprintf("rt-%s-%d", u.ID, f.seq)
	f.refresh[token] = u.ID
	return token
}

func (f *fakeAuth) Register(_ context.Context, name, email, password string) (*service.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byEmail(email) != nil {
		return nil, domain.ErrEmailTaken
	}
	u := &domain.User{ID: "u-" + name, Name: name, Email: email, Role: domain.RoleUser, Permissions: domain.NewPermissionSet()}
	f.users[u.ID] = u
	f.passwords[email] = password
	return f.session(u, f.issue(u))
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*service.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil || f.passwords[email] != password {
		return nil, domain.ErrInvalidCredentials
	}
	return f.session(u, f.issue(u))
}

func (f *fakeAuth) SignInFederated(ctx context.Context, provider, assertion string) (*service.Session, error) {
	identity, err := f.identities.Verify(ctx, provider, assertion)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(identity.Email)
	if u == nil {
		u = &domain.User{ID: "fed-" + identity.Email, Name: identity.Name, Email: identity.Email, Role: domain.RoleUser, Provider: identity.Provider}
		f.users[u.ID] = u
	}
	if u.Provider != identity.Provider {
		return nil, domain.ErrProviderMismatch
	}
	return f.session(u, f.issue(u))
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (*auth.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rotated, replayed := f.rotated[refreshToken]
	subject, ok := f.refresh[refreshToken]
	switch {
	case replayed:
		subject = f.refresh[rotated]
	case !ok:
		return nil, domain.ErrRefreshTokenNotFound
	default:
		delete(f.refresh, refreshToken)
	}
	u := f.users[subject]
	if u == nil {
		return nil, domain.ErrRefreshTokenNotFound
	}
	if !replayed {
		rotated = f.issue(u)
		f.rotated[refreshToken] = rotated
	}
	session, err := f.session(u, rotated)
	if err != nil {
		return nil, err
	}
	return &auth.RefreshResult{AccessToken: session.Token, RefreshToken: rotated, ExpiresAt: session.Credential.ExpiresAt}, nil
}

func (f *fakeAuth) SignOut(_ context.Context, cred domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, cred.RefreshToken)
	delete(f.rotated, cred.RefreshToken)
	f.revoked = append(f.revoked, cred.RefreshToken)
	return nil
}

func (f *fakeAuth) ForceRefresh(_ context.Context, cred domain.Credential) (*service.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.production {
		return nil, service.ErrForceRefreshDisabled
	}
	u, ok := f.users[cred.SubjectID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return f.session(u, cred.RefreshToken)
}

type fakeAdmin struct {
	auth *fakeAuth
}

func (a fakeAdmin) ListUsers(context.Context) ([]*domain.User, error) {
	a.auth.mu.Lock()
	defer a.auth.mu.Unlock()
	out := make([]*domain.User, 0, len(a.auth.users))
	for _, u := range a.auth.users {
		out = append(out, u)
	}
	return out, nil
}

func (a fakeAdmin) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	a.auth.mu.Lock()
	defer a.auth.mu.Unlock()
	u, ok := a.auth.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = role
	return u, nil
}
