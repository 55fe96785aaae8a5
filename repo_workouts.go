package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Workouts is the dependent-resource collaborator. Account deletion calls
// DeleteAllOwnedBy and must see it succeed before the account row goes away.
type Workouts interface {
	repository.Repository[*Workout]

	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Workout, error)
	ListByOwnerTx(ctx context.Context, tx bun.IDB, owner uuid.UUID) ([]*Workout, error)

	DeleteAllOwnedBy(ctx context.Context, owner uuid.UUID) (int, error)
	DeleteAllOwnedByTx(ctx context.Context, tx bun.IDB, owner uuid.UUID) (int, error)
}

type workouts struct {
	repository.Repository[*Workout]
	db *bun.DB
}

var (
	_ Workouts                        = (*workouts)(nil)
	_ repository.Repository[*Workout] = (*workouts)(nil)
)

func NewWorkoutsRepository(db *bun.DB) Workouts {
	repo := repository.NewRepository[*Workout](db, repository.ModelHandlers[*Workout]{
		NewRecord: func() *Workout { return &Workout{} },
		GetID: func(w *Workout) uuid.UUID {
			if w == nil {
				return uuid.Nil
			}
			return w.ID
		},
		SetID: func(w *Workout, id uuid.UUID) {
			if w != nil {
				w.ID = id
			}
		},
	})

	return &workouts{
		Repository: repo,
		db:         db,
	}
}

func (r *workouts) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Workout, error) {
	return r.ListByOwnerTx(ctx, r.db, owner)
}

func (r *workouts) ListByOwnerTx(ctx context.Context, tx bun.IDB, owner uuid.UUID) ([]*Workout, error) {
	var records []*Workout
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", owner.String()).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list workouts")
	}

	return records, nil
}

func (r *workouts) DeleteAllOwnedBy(ctx context.Context, owner uuid.UUID) (int, error) {
	return r.DeleteAllOwnedByTx(ctx, r.db, owner)
}

// DeleteAllOwnedByTx removes every workout owned by the account and reports
// how many rows went away. Zero rows is a success, not an error, so account
// deletion stays idempotent with respect to dependents.
func (r *workouts) DeleteAllOwnedByTx(ctx context.Context, tx bun.IDB, owner uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*Workout)(nil)).
		Where("?TableAlias.user_id = ?", owner.String()).
		Exec(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete owned workouts")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count deleted workouts")
	}

	return int(affected), nil
}
