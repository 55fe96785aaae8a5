package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthContext is the explicit session state threaded through the lifecycle
// controller: either Anonymous or Authenticated for a concrete account. It
// replaces any ad hoc "is there a cookie" inference.
type AuthContext struct {
	accountID     uuid.UUID
	authenticated bool
}

// Anonymous returns the unauthenticated context.
func Anonymous() AuthContext {
	return AuthContext{}
}

// AuthenticatedAs returns a context bound to the given account.
func AuthenticatedAs(accountID uuid.UUID) AuthContext {
	return AuthContext{accountID: accountID, authenticated: true}
}

// IsAuthenticated reports whether the context carries a validated identity.
func (a AuthContext) IsAuthenticated() bool {
	return a.authenticated
}

// AccountID returns the bound account id when authenticated.
func (a AuthContext) AccountID() (uuid.UUID, bool) {
	if !a.authenticated {
		return uuid.Nil, false
	}
	return a.accountID, true
}

// StartedSession is the successful outcome of signup and login.
type StartedSession struct {
	Account *User
	Token   string
}

// UpdatedProfile is the successful outcome of a profile update. Token is
// non-empty only when an identity-relevant field (the email) changed and a
// fresh token was issued.
type UpdatedProfile struct {
	Account *User
	Token   string
}

// DeletedAccount reports a completed account deletion, including how many
// dependent resources were cascaded away.
type DeletedAccount struct {
	Account         *User
	WorkoutsRemoved int
}

// Lifecycle orchestrates signup, login, profile updates, and account
// deletion by composing the credential store, the password hasher, and the
// token service. It holds no per-request state; every method is safe for
// concurrent use.
type Lifecycle struct {
	repo   RepositoryManager
	hasher PasswordAuthenticator
	tokens TokenService
	logger Logger
	sink   ActivitySink
}

// LifecycleOption customizes the controller.
type LifecycleOption func(*Lifecycle)

// WithLifecycleLogger overrides the default logger.
func WithLifecycleLogger(l Logger) LifecycleOption {
	return func(lc *Lifecycle) {
		if l != nil {
			lc.logger = l
		}
	}
}

// WithLifecycleActivitySink attaches an audit sink.
func WithLifecycleActivitySink(s ActivitySink) LifecycleOption {
	return func(lc *Lifecycle) {
		lc.sink = normalizeActivitySink(s)
	}
}

// WithLifecycleHasher overrides the password hasher.
func WithLifecycleHasher(h PasswordAuthenticator) LifecycleOption {
	return func(lc *Lifecycle) {
		if h != nil {
			lc.hasher = h
		}
	}
}

// NewLifecycle builds the account lifecycle controller. The configuration is
// validated eagerly: a missing signing secret fails here, at startup, not on
// the first request.
func NewLifecycle(repo RepositoryManager, cfg Config, opts ...LifecycleOption) (*Lifecycle, error) {
	if validator, ok := cfg.(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}

	lc := &Lifecycle{
		repo:   repo,
		hasher: NewBcryptHasher(cfg.GetHashCost()),
		tokens: NewTokenService(
			[]byte(cfg.GetSigningKey()),
			cfg.GetTokenTTL(),
			cfg.GetIssuer(),
			cfg.GetAudience(),
			defLogger{},
		),
		logger: defLogger{},
		sink:   noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(lc)
		}
	}

	return lc, nil
}

// TokenService exposes the token service so transports can validate tokens
// against the same signing secret.
func (l *Lifecycle) TokenService() TokenService {
	return l.tokens
}

// Signup validates the credentials, creates the account, and starts a
// session. Email collisions surface as a conflict; the database unique index
// guarantees exactly one winner under concurrent signups for the same email.
func (l *Lifecycle) Signup(ctx context.Context, input CredentialInput) (*StartedSession, error) {
	if err := input.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	hash, err := l.hasher.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        input.Email,
		PasswordHash: hash,
	}

	var created *User
	err = l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err = l.repo.Users().RegisterTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return nil, err
	}

	token, err := l.tokens.Generate(NewIdentityFromUser(created))
	if err != nil {
		return nil, err
	}

	l.emit(ctx, ActivityEventSignup, created.ID.String(), map[string]any{
		"email": created.Email,
	})

	return &StartedSession{
		Account: created.Sanitized(),
		Token:   token,
	}, nil
}

// Login verifies the credentials and mints a fresh token. Prior sessions are
// irrelevant: tokens are stateless and non-exclusive, so a login while
// already authenticated simply yields another valid token.
func (l *Lifecycle) Login(ctx context.Context, input CredentialInput) (*StartedSession, error) {
	user, err := l.repo.Users().GetByEmail(ctx, input.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			l.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"identifier": input.Email})
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := l.hasher.ComparePasswordAndHash(input.Password, user.PasswordHash); err != nil {
		l.emit(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{"identifier": input.Email})
		return nil, ErrMismatchedHashAndPassword
	}

	token, err := l.tokens.Generate(NewIdentityFromUser(user))
	if err != nil {
		return nil, err
	}

	l.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return &StartedSession{
		Account: user.Sanitized(),
		Token:   token,
	}, nil
}

// Authenticate resolves a raw token into an AuthContext. Missing, forged,
// and expired tokens all come back Anonymous; the caller cannot tell why.
func (l *Lifecycle) Authenticate(raw string) AuthContext {
	if raw == "" {
		return Anonymous()
	}

	claims, err := l.tokens.Validate(raw)
	if err != nil {
		return Anonymous()
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return Anonymous()
	}

	return AuthenticatedAs(id)
}

// Logout is a client-side transport action; the server keeps no session
// state to tear down. It exists so the state machine is explicit and stays
// idempotent when called while already anonymous.
func (l *Lifecycle) Logout(AuthContext) AuthContext {
	return Anonymous()
}

// ViewSelf loads the account behind the context. The password hash is never
// part of the result. A well-formed token whose account has since been
// deleted reports not-found, never a stale record.
func (l *Lifecycle) ViewSelf(ctx context.Context, actx AuthContext) (*User, error) {
	id, ok := actx.AccountID()
	if !ok {
		return nil, ErrUnableToFindSession
	}

	user, err := l.repo.Users().FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	return user.Sanitized(), nil
}

// Update applies a profile patch. Fields are independently optional; a
// password change is re-hashed, and an email change re-issues the token so
// the session follows the new identity.
func (l *Lifecycle) Update(ctx context.Context, actx AuthContext, patch ProfilePatch) (*UpdatedProfile, error) {
	id, ok := actx.AccountID()
	if !ok {
		return nil, ErrUnableToFindSession
	}

	if err := patch.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	current, err := l.repo.Users().FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if patch.IsZero() {
		return &UpdatedProfile{Account: current.Sanitized()}, nil
	}

	repoPatch := UserPatch{}
	emailChanged := false

	if patch.Email != "" && NormalizeEmail(patch.Email) != current.Email {
		repoPatch.Email = patch.Email
		emailChanged = true
	}

	if patch.Password != "" {
		hash, err := l.hasher.HashPassword(patch.Password)
		if err != nil {
			return nil, err
		}
		repoPatch.PasswordHash = hash
	}

	var updated *User
	err = l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err = l.repo.Users().UpdateProfileTx(ctx, tx, id, repoPatch)
		return err
	})

	if err != nil {
		return nil, err
	}

	result := &UpdatedProfile{Account: updated.Sanitized()}

	if emailChanged {
		token, err := l.tokens.Generate(NewIdentityFromUser(updated))
		if err != nil {
			return nil, err
		}
		result.Token = token
	}

	l.emit(ctx, ActivityEventProfileUpdated, id.String(), map[string]any{
		"email_changed":    emailChanged,
		"password_changed": repoPatch.PasswordHash != "",
	})

	return result, nil
}

// Delete removes the account and cascades over its dependent resources.
// Dependents go first inside a single transaction, so a failure at any point
// leaves the account intact rather than orphaning workouts.
func (l *Lifecycle) Delete(ctx context.Context, actx AuthContext) (*DeletedAccount, error) {
	id, ok := actx.AccountID()
	if !ok {
		return nil, ErrUnableToFindSession
	}

	var removed int
	var deleted *User

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		removed, err = l.repo.Workouts().DeleteAllOwnedByTx(ctx, tx, id)
		if err != nil {
			return err
		}

		deleted, err = l.repo.Users().DeleteByIDTx(ctx, tx, id)
		return err
	})

	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	l.emit(ctx, ActivityEventAccountDeleted, id.String(), map[string]any{
		"workouts_removed": removed,
	})

	return &DeletedAccount{
		Account:         deleted.Sanitized(),
		WorkoutsRemoved: removed,
	}, nil
}

func (l *Lifecycle) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(l.sink)

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: userID, Type: "user"},
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		l.logger.Warn("activity sink record error: %v", err)
	}
}
