package auth

import (
	"context"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedEmail    = "user0@test.net"
	seedPassword = "asdfASDF1234!@#$"
)

func setupLifecycle(t *testing.T, opts ...LifecycleOption) (*Lifecycle, RepositoryManager, *bun.DB, func()) {
	t.Helper()

	repo, db, cleanup := setupRepoManager(t)

	cfg := SimpleConfig{
		SigningKey: "lifecycle-test-secret",
		HashCost:   bcrypt.MinCost,
	}

	opts = append([]LifecycleOption{WithLifecycleHasher(NewBcryptHasher(bcrypt.MinCost))}, opts...)

	lc, err := NewLifecycle(repo, cfg, opts...)
	require.NoError(t, err)

	return lc, repo, db, cleanup
}

func mustSignup(t *testing.T, lc *Lifecycle, email, password string) *StartedSession {
	t.Helper()

	session, err := lc.Signup(context.Background(), CredentialInput{Email: email, Password: password})
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

func TestNewLifecycleRejectsBadConfig(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	_, err := NewLifecycle(repo, SimpleConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key")
}

func TestLifecycleSignup(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	session := mustSignup(t, lc, seedEmail, seedPassword)

	assert.NotEmpty(t, session.Token)
	require.NotNil(t, session.Account)
	assert.Equal(t, seedEmail, session.Account.Email)
	assert.Empty(t, session.Account.PasswordHash)
	assert.NotEqual(t, uuid.Nil, session.Account.ID)

	// The signup token is immediately usable.
	actx := lc.Authenticate(session.Token)
	require.True(t, actx.IsAuthenticated())

	id, ok := actx.AccountID()
	require.True(t, ok)
	assert.Equal(t, session.Account.ID, id)
}

func TestLifecycleSignupValidation(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	ctx := context.Background()

	_, err := lc.Signup(ctx, CredentialInput{Email: "user2@test.net", Password: "pass"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)

	_, err = lc.Signup(ctx, CredentialInput{Email: "not-an-email", Password: seedPassword})
	require.Error(t, err)
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)

	// Nothing was stored for the rejected inputs.
	_, err = lc.repo.Users().GetByEmail(ctx, "user2@test.net")
	assert.True(t, goerrors.IsNotFound(err))
}

func TestLifecycleSignupConflict(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	mustSignup(t, lc, seedEmail, seedPassword)

	_, err := lc.Signup(context.Background(), CredentialInput{Email: "USER0@test.net", Password: "otherPASS123"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
	assert.Equal(t, TextCodeEmailTaken, richErr.TextCode)
}

func TestLifecycleLogin(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	ctx := context.Background()
	created := mustSignup(t, lc, seedEmail, seedPassword)

	t.Run("valid credentials", func(t *testing.T) {
		session, err := lc.Login(ctx, CredentialInput{Email: "USER0@TEST.NET", Password: seedPassword})
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, created.Account.ID, session.Account.ID)
		assert.Empty(t, session.Account.PasswordHash)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := lc.Login(ctx, CredentialInput{Email: seedEmail, Password: "wrongPASS123"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})

	t.Run("unknown email looks identical to wrong password", func(t *testing.T) {
		_, err := lc.Login(ctx, CredentialInput{Email: "ghost@test.net", Password: seedPassword})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})

	t.Run("logins mint independent tokens", func(t *testing.T) {
		first, err := lc.Login(ctx, CredentialInput{Email: seedEmail, Password: seedPassword})
		require.NoError(t, err)
		second, err := lc.Login(ctx, CredentialInput{Email: seedEmail, Password: seedPassword})
		require.NoError(t, err)

		assert.NotEqual(t, first.Token, second.Token)
		assert.True(t, lc.Authenticate(first.Token).IsAuthenticated())
		assert.True(t, lc.Authenticate(second.Token).IsAuthenticated())
	})
}

func TestLifecycleAuthenticate(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	session := mustSignup(t, lc, seedEmail, seedPassword)

	assert.True(t, lc.Authenticate(session.Token).IsAuthenticated())
	assert.False(t, lc.Authenticate("").IsAuthenticated())
	assert.False(t, lc.Authenticate("garbage.token.value").IsAuthenticated())

	tampered := session.Token[:len(session.Token)-4] + "AAAA"
	assert.False(t, lc.Authenticate(tampered).IsAuthenticated())
}

func TestLifecycleLogoutIsIdempotent(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	session := mustSignup(t, lc, seedEmail, seedPassword)
	actx := lc.Authenticate(session.Token)
	require.True(t, actx.IsAuthenticated())

	anon := lc.Logout(actx)
	assert.False(t, anon.IsAuthenticated())

	// Logging out while already anonymous yields the same state.
	assert.False(t, lc.Logout(anon).IsAuthenticated())

	// Logout does not revoke the token itself; it remains valid until expiry.
	assert.True(t, lc.Authenticate(session.Token).IsAuthenticated())
}

func TestLifecycleViewSelf(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	ctx := context.Background()
	session := mustSignup(t, lc, seedEmail, seedPassword)

	t.Run("authenticated", func(t *testing.T) {
		user, err := lc.ViewSelf(ctx, lc.Authenticate(session.Token))
		require.NoError(t, err)
		assert.Equal(t, seedEmail, user.Email)
		assert.Empty(t, user.PasswordHash)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := lc.ViewSelf(ctx, Anonymous())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnableToFindSession)
	})

	t.Run("valid token for a vanished account", func(t *testing.T) {
		_, err := lc.ViewSelf(ctx, AuthenticatedAs(uuid.New()))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIdentityNotFound)
	})
}

func TestLifecycleUpdate(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	ctx := context.Background()
	session := mustSignup(t, lc, seedEmail, seedPassword)
	actx := lc.Authenticate(session.Token)

	t.Run("password change", func(t *testing.T) {
		updated, err := lc.Update(ctx, actx, ProfilePatch{Password: "newPASS1234"})
		require.NoError(t, err)
		assert.Empty(t, updated.Token)
		assert.Empty(t, updated.Account.PasswordHash)

		_, err = lc.Login(ctx, CredentialInput{Email: seedEmail, Password: "newPASS1234"})
		assert.NoError(t, err)

		_, err = lc.Login(ctx, CredentialInput{Email: seedEmail, Password: seedPassword})
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})

	t.Run("email change re-issues the token", func(t *testing.T) {
		updated, err := lc.Update(ctx, actx, ProfilePatch{Email: "Renamed@Test.NET"})
		require.NoError(t, err)
		assert.Equal(t, "renamed@test.net", updated.Account.Email)
		require.NotEmpty(t, updated.Token)
		assert.NotEqual(t, session.Token, updated.Token)

		fresh := lc.Authenticate(updated.Token)
		require.True(t, fresh.IsAuthenticated())

		id, _ := fresh.AccountID()
		assert.Equal(t, updated.Account.ID, id)
	})

	t.Run("same email does not re-issue", func(t *testing.T) {
		updated, err := lc.Update(ctx, actx, ProfilePatch{Email: "renamed@test.net"})
		require.NoError(t, err)
		assert.Empty(t, updated.Token)
	})

	t.Run("empty patch returns current state", func(t *testing.T) {
		updated, err := lc.Update(ctx, actx, ProfilePatch{})
		require.NoError(t, err)
		assert.Equal(t, "renamed@test.net", updated.Account.Email)
		assert.Empty(t, updated.Token)
	})

	t.Run("invalid patch", func(t *testing.T) {
		_, err := lc.Update(ctx, actx, ProfilePatch{Password: "short"})
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
	})

	t.Run("conflicting email", func(t *testing.T) {
		mustSignup(t, lc, "taken@test.net", seedPassword)

		_, err := lc.Update(ctx, actx, ProfilePatch{Email: "taken@test.net"})
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := lc.Update(ctx, Anonymous(), ProfilePatch{Email: "x@test.net"})
		assert.ErrorIs(t, err, ErrUnableToFindSession)
	})
}

func TestLifecycleDeleteCascades(t *testing.T) {
	lc, repo, db, cleanup := setupLifecycle(t)
	defer cleanup()

	ctx := context.Background()

	victim := mustSignup(t, lc, seedEmail, seedPassword)
	survivor := mustSignup(t, lc, "user1@test.net", seedPassword)

	seedWorkout(t, db, victim.Account.ID, "run")
	seedWorkout(t, db, victim.Account.ID, "lift")
	kept := seedWorkout(t, db, survivor.Account.ID, "swim")

	actx := lc.Authenticate(victim.Token)

	deleted, err := lc.Delete(ctx, actx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted.WorkoutsRemoved)
	assert.Equal(t, victim.Account.ID, deleted.Account.ID)

	// The account and all owned workouts are gone.
	_, err = repo.Users().FindByID(ctx, victim.Account.ID)
	assert.True(t, goerrors.IsNotFound(err))

	mine, err := repo.Workouts().ListByOwner(ctx, victim.Account.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// Other accounts and their resources are untouched.
	theirs, err := repo.Workouts().ListByOwner(ctx, survivor.Account.ID)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, kept.ID, theirs[0].ID)

	// Credentials stop working and the failure is the uniform login error.
	_, err = lc.Login(ctx, CredentialInput{Email: seedEmail, Password: seedPassword})
	assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)

	// The old token still verifies, but the account behind it is gone.
	stale := lc.Authenticate(victim.Token)
	require.True(t, stale.IsAuthenticated())

	_, err = lc.ViewSelf(ctx, stale)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	// Deleting again with the stale context reports the missing account.
	_, err = lc.Delete(ctx, stale)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	// The freed email can be registered again as a brand-new account.
	again := mustSignup(t, lc, seedEmail, "freshPASS1234")
	assert.NotEqual(t, victim.Account.ID, again.Account.ID)
}

func TestLifecycleDeleteAnonymous(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	_, err := lc.Delete(context.Background(), Anonymous())
	assert.ErrorIs(t, err, ErrUnableToFindSession)
}

func TestLifecycleEmitsActivityEvents(t *testing.T) {
	var events []ActivityEvent

	sink := ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		events = append(events, event)
		return nil
	})

	lc, _, _, cleanup := setupLifecycle(t, WithLifecycleActivitySink(sink))
	defer cleanup()

	ctx := context.Background()

	session := mustSignup(t, lc, seedEmail, seedPassword)

	_, err := lc.Login(ctx, CredentialInput{Email: seedEmail, Password: "wrongPASS123"})
	require.Error(t, err)

	_, err = lc.Login(ctx, CredentialInput{Email: seedEmail, Password: seedPassword})
	require.NoError(t, err)

	_, err = lc.Delete(ctx, lc.Authenticate(session.Token))
	require.NoError(t, err)

	var types []ActivityEventType
	for _, e := range events {
		types = append(types, e.EventType)
	}

	assert.Equal(t, []ActivityEventType{
		ActivityEventSignup,
		ActivityEventLoginFailure,
		ActivityEventLoginSuccess,
		ActivityEventAccountDeleted,
	}, types)
}

func TestSignupConcurrentSameEmail(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	const racers = 8

	var wg sync.WaitGroup
	results := make([]error, racers)

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(slot int) {
			defer wg.Done()
			_, err := lc.Signup(context.Background(), CredentialInput{
				Email:    seedEmail,
				Password: seedPassword,
			})
			results[slot] = err
		}(i)
	}
	wg.Wait()

	// The unique index is the only arbiter: one winner, the rest conflict.
	var won, conflicted int
	for _, err := range results {
		if err == nil {
			won++
			continue
		}

		var richErr *goerrors.Error
		require.ErrorAs(t, err, &richErr)
		assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
		conflicted++
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, racers-1, conflicted)

	session, err := lc.Login(context.Background(), CredentialInput{Email: seedEmail, Password: seedPassword})
	require.NoError(t, err)
	assert.True(t, lc.Authenticate(session.Token).IsAuthenticated())
}

func TestSignupMaxLengthPassword(t *testing.T) {
	lc, _, _, cleanup := setupLifecycle(t)
	defer cleanup()

	// Exactly at the policy cap, which is also bcrypt's input limit.
	password := "aB3" + strings.Repeat("x", 69)

	session := mustSignup(t, lc, seedEmail, password)
	assert.NotEmpty(t, session.Token)

	_, err := lc.Login(context.Background(), CredentialInput{Email: seedEmail, Password: password})
	require.NoError(t, err)
}
