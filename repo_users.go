package auth

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store: one record per account, email unique at all
// times. The unique index is the serialization point for concurrent creates
// and updates; this layer only maps violations, it adds no locking of its own.
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, patch UserPatch) (*User, error)

	DeleteByID(ctx context.Context, id uuid.UUID) (*User, error)
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
}

// UserPatch carries the mutable profile fields. Empty fields are left
// untouched; PasswordHash must already be hashed by the caller.
type UserPatch struct {
	Email        string
	PasswordHash string
}

func (p UserPatch) isZero() bool {
	return p.Email == "" && p.PasswordHash == ""
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts a new account. A uniqueness violation surfaces as
// ErrEmailTaken; under concurrent registration of the same email exactly one
// caller wins and the rest receive the conflict.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrEmailTaken.Clone().WithMetadata(map[string]any{
				"email": user.Email,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isEmptyResult(err) {
			return nil, goerrors.Wrap(
				repository.NewRecordNotFound(), goerrors.CategoryNotFound, "user not found",
			).WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

// FindByID is the uuid-typed lookup. The embedded repository owns GetByID at
// its string-keyed signature, so the typed variant gets its own name.
func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isEmptyResult(err) {
			return nil, goerrors.Wrap(
				repository.NewRecordNotFound(), goerrors.CategoryNotFound, "user not found",
			).WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) UpdateProfile(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error) {
	return a.UpdateProfileTx(ctx, a.db, id, patch)
}

// UpdateProfileTx applies the patch atomically. An email collision with a
// different account surfaces as ErrEmailTaken and leaves both rows unchanged.
func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, patch UserPatch) (*User, error) {
	if patch.isZero() {
		return a.FindByIDTx(ctx, tx, id)
	}

	record := &User{ID: id}
	columns := make([]string, 0, 3)

	if patch.Email != "" {
		record.Email = NormalizeEmail(patch.Email)
		columns = append(columns, "email")
	}

	if patch.PasswordHash != "" {
		record.PasswordHash = patch.PasswordHash
		columns = append(columns, "password_hash")
	}

	now := time.Now()
	record.UpdatedAt = &now
	columns = append(columns, "updated_at")

	res, err := tx.NewUpdate().
		Model(record).
		Column(columns...).
		Where("?TableAlias.id = ?", id.String()).
		Exec(ctx)

	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrEmailTaken.Clone().WithMetadata(map[string]any{
				"email": patch.Email,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, goerrors.Wrap(
			repository.NewRecordNotFound(), goerrors.CategoryNotFound, "user not found",
		).WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"id": id.String()})
	}

	return a.FindByIDTx(ctx, tx, id)
}

func (a *users) DeleteByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.DeleteByIDTx(ctx, a.db, id)
}

// DeleteByIDTx removes the account row for good; there is no soft delete.
func (a *users) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record, err := a.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	_, err = tx.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user")
	}

	return record, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func isEmptyResult(err error) bool {
	return goerrors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
