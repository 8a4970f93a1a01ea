package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/observability"
)

// State is the outcome of evaluating a credential against the clock.
type State int

const (
	StateFresh State = iota
	StateRenew
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRenew:
		return "renew"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ErrCredentialRevoked is returned when renewal is requested for a credential
// already tagged with a terminal error.
var ErrCredentialRevoked = errors.New("credential carries a terminal error")

// RenewalError reports why the refresh endpoint could not mint a new credential.
type RenewalError struct {
	SubjectID string
	Err       error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("renew credential for %s: %v", e.SubjectID, e.Err)
}

func (e *RenewalError) Unwrap() error {
	return e.Err
}

// RefreshResult is the payload returned by the refresh endpoint.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Refresher exchanges a refresh token for new tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// PrincipalFinder resolves the current role and permissions of a subject.
type PrincipalFinder interface {
	FindPrincipal(ctx context.Context, subjectID string) (*domain.Principal, error)
}

// LifecycleOptions tunes credential renewal.
type LifecycleOptions struct {
	SessionDuration  time.Duration
	RenewalThreshold time.Duration
	RefreshTimeout   time.Duration
	FailureHold      time.Duration
}

// LifecycleManager decides when credentials need renewal and renews them.
type LifecycleManager struct {
	opts      LifecycleOptions
	refresher Refresher
	finder    PrincipalFinder
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	flights   singleflight.Group
}

// LifecycleDependencies bundles the collaborators of the manager. Finder and
// Metrics are optional.
type LifecycleDependencies struct {
	Refresher Refresher
	Finder    PrincipalFinder
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Clock     func() time.Time
}

// NewLifecycleManager builds a manager.
func NewLifecycleManager(opts LifecycleOptions, deps LifecycleDependencies) *LifecycleManager {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 5 * time.Second
	}
	if opts.FailureHold <= 0 {
		opts.FailureHold = time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &LifecycleManager{
		opts:      opts,
		refresher: deps.Refresher,
		finder:    deps.Finder,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       clock,
	}
}

// Evaluate classifies the credential relative to now.
func (m *LifecycleManager) Evaluate(cred domain.Credential, now time.Time) State {
	remaining := cred.Remaining(now)
	switch {
	case remaining <= 0:
		return StateExpired
	case remaining <= m.opts.RenewalThreshold:
		return StateRenew
	default:
		return StateFresh
	}
}

// Status evaluates the credential against the manager's clock.
func (m *LifecycleManager) Status(cred domain.Credential) State {
	return m.Evaluate(cred, m.now())
}

// Renew returns a new credential minted from cred's refresh token. Fresh
// credentials are returned unchanged. When the refresh fails the returned
// credential is tagged with domain.RefreshErrorTag and the error is a
// *RenewalError. If ctx ends first the result is discarded and ctx.Err() is
// returned with a zero credential.
func (m *LifecycleManager) Renew(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	if cred.Error != "" {
		return cred, ErrCredentialRevoked
	}
	if m.Evaluate(cred, m.now()) == StateFresh {
		m.metrics.RecordRenewal("skipped")
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return m.fail(cred, errors.New("credential has no refresh token"))
	}

	key := cred.SubjectID + ":" + cred.RefreshToken
	ch := m.flights.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.RefreshTimeout)
		defer cancel()
		return m.refresh(flightCtx, cred)
	})

	select {
	case <-ctx.Done():
		m.logger.Debug("renewal abandoned", zap.String("subject_id", cred.SubjectID), zap.Error(ctx.Err()))
		return domain.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return m.fail(cred, res.Err)
		}
		return m.mint(cred, res.Val.(*renewal))
	}
}

type renewal struct {
	refreshToken string
	principal    *domain.Principal
}

func (m *LifecycleManager) refresh(ctx context.Context, cred domain.Credential) (*renewal, error) {
	if m.refresher == nil {
		return nil, errors.New("no refresh endpoint configured")
	}
	result, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, err
	}

	out := &renewal{
		refreshToken: cred.RefreshToken,
		principal:    &domain.Principal{ID: cred.SubjectID, Role: cred.Role, Permissions: cred.Permissions},
	}
	if result.RefreshToken != "" {
		out.refreshToken = result.RefreshToken
	}
	if m.finder != nil {
		principal, err := m.finder.FindPrincipal(ctx, cred.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("resync principal: %w", err)
		}
		out.principal = principal
	}
	return out, nil
}

func (m *LifecycleManager) mint(prev domain.Credential, r *renewal) (domain.Credential, error) {
	now := m.now()
	next, err := domain.NewCredential(prev.SubjectID, r.principal.Role, r.principal.Permissions,
		now, now.Add(m.opts.SessionDuration), r.refreshToken)
	if err != nil {
		return m.fail(prev, err)
	}
	m.metrics.RecordRenewal("renewed")
	m.logger.Info("credential renewed",
		zap.String("subject_id", next.SubjectID),
		zap.String("role", next.Role.String()),
		zap.Time("expires_at", next.ExpiresAt),
	)
	return next, nil
}

func (m *LifecycleManager) fail(cred domain.Credential, cause error) (domain.Credential, error) {
	m.metrics.RecordRenewal("failed")
	m.logger.Warn("credential renewal failed", zap.String("subject_id", cred.SubjectID), zap.Error(cause))
	tagged := cred.WithError(domain.RefreshErrorTag, m.now().Add(m.opts.FailureHold))
	return tagged, &RenewalError{SubjectID: cred.SubjectID, Err: cause}
}
