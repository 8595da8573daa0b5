package climb

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Routes persists logged routes, scoped to their owner
type Routes interface {
	List(ctx context.Context, owner uuid.UUID, opts ListOptions) ([]*Route, error)
	Recent(ctx context.Context, owner uuid.UUID, limit int) ([]*Route, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*Route, error)
	Create(ctx context.Context, owner uuid.UUID, record *Route) (*Route, error)
	Update(ctx context.Context, owner uuid.UUID, record *Route) (*Route, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	Count(ctx context.Context, owner uuid.UUID) (int, error)
	CountCompleted(ctx context.Context, owner uuid.UUID) (int, error)
}

type routes struct {
	repo repository.Repository[*Route]
	db   *bun.DB
	now  func() time.Time
}

var _ Routes = (*routes)(nil)

// RoutesOption configures the routes repository
type RoutesOption func(*routes)

// WithRoutesClock overrides the time source used for timestamps
func WithRoutesClock(now func() time.Time) RoutesOption {
	return func(r *routes) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRoutesRepository returns an owner scoped routes repository
func NewRoutesRepository(db *bun.DB, opts ...RoutesOption) Routes {
	repo := repository.NewRepository[*Route](db, repository.ModelHandlers[*Route]{
		NewRecord: func() *Route { return &Route{} },
		GetID: func(r *Route) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Route, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	r := &routes{
		repo: repo,
		db:   db,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *routes) List(ctx context.Context, owner uuid.UUID, opts ListOptions) ([]*Route, error) {
	records := []*Route{}
	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", owner).
		OrderExpr("?TableAlias.date DESC").
		OrderExpr("?TableAlias.created_at DESC")

	if opts.From != nil {
		q = q.Where("?TableAlias.date >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		q = q.Where("?TableAlias.date < ?", opts.To.UTC())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// Recent returns the most recently created routes
func (r *routes) Recent(ctx context.Context, owner uuid.UUID, limit int) ([]*Route, error) {
	records := []*Route{}
	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", owner).
		OrderExpr("?TableAlias.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *routes) Get(ctx context.Context, owner, id uuid.UUID) (*Route, error) {
	return r.repo.GetByID(ctx, id.String(), ownedBy(owner))
}

func (r *routes) Create(ctx context.Context, owner uuid.UUID, record *Route) (*Route, error) {
	if record == nil {
		return nil, errNilRecord
	}

	record.ID = uuid.Nil
	record.CreatedAt = time.Time{}
	record.UserID = owner
	prepareRouteDefaults(record, r.now())

	return r.repo.Create(ctx, record)
}

func (r *routes) Update(ctx context.Context, owner uuid.UUID, record *Route) (*Route, error) {
	if record == nil {
		return nil, errNilRecord
	}

	current, err := r.Get(ctx, owner, record.ID)
	if err != nil {
		return nil, err
	}

	record.UserID = owner
	record.CreatedAt = current.CreatedAt
	prepareRouteDefaults(record, r.now())

	res, err := r.db.NewUpdate().
		Model(record).
		ExcludeColumn("id", "user_id", "created_at").
		Where("?TableAlias.id = ?", record.ID).
		Where("?TableAlias.user_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := expectRows(res, record.ID); err != nil {
		return nil, err
	}

	return r.Get(ctx, owner, record.ID)
}

func (r *routes) Delete(ctx context.Context, owner, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Route)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.user_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, id)
}

func (r *routes) Count(ctx context.Context, owner uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*Route)(nil)).
		Where("?TableAlias.user_id = ?", owner).
		Count(ctx)
}

func (r *routes) CountCompleted(ctx context.Context, owner uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*Route)(nil)).
		Where("?TableAlias.user_id = ?", owner).
		Where("?TableAlias.completed = ?", true).
		Count(ctx)
}
