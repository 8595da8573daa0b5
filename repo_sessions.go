package climb

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ListOptions narrows an owner scoped listing
type ListOptions struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Sessions persists climbing sessions. Every method is scoped to an owner and
// a record that belongs to somebody else is reported as not found.
type Sessions interface {
	List(ctx context.Context, owner uuid.UUID, opts ListOptions) ([]*Session, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*Session, error)
	Create(ctx context.Context, owner uuid.UUID, record *Session) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, owner uuid.UUID, record *Session) (*Session, error)
	Update(ctx context.Context, owner uuid.UUID, record *Session) (*Session, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	Count(ctx context.Context, owner uuid.UUID) (int, error)
	TotalDuration(ctx context.Context, owner uuid.UUID) (int, error)
}

type sessions struct {
	repo repository.Repository[*Session]
	db   *bun.DB
	now  func() time.Time
}

var _ Sessions = (*sessions)(nil)

// SessionsOption configures the sessions repository
type SessionsOption func(*sessions)

// WithSessionsClock overrides the time source used for default dates
func WithSessionsClock(now func() time.Time) SessionsOption {
	return func(r *sessions) {
		if now != nil {
			r.now = now
		}
	}
}

// NewSessionsRepository returns an owner scoped sessions repository
func NewSessionsRepository(db *bun.DB, opts ...SessionsOption) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	r := &sessions{
		repo: repo,
		db:   db,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *sessions) List(ctx context.Context, owner uuid.UUID, opts ListOptions) ([]*Session, error) {
	records := []*Session{}
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

func (r *sessions) Get(ctx context.Context, owner, id uuid.UUID) (*Session, error) {
	return r.repo.GetByID(ctx, id.String(), ownedBy(owner))
}

func (r *sessions) Create(ctx context.Context, owner uuid.UUID, record *Session) (*Session, error) {
	return r.CreateTx(ctx, r.db, owner, record)
}

func (r *sessions) CreateTx(ctx context.Context, tx bun.IDB, owner uuid.UUID, record *Session) (*Session, error) {
	if record == nil {
		return nil, errNilRecord
	}

	record.ID = uuid.Nil
	record.CreatedAt = time.Time{}
	record.UserID = owner

	if err := checkClimbRoutes(ctx, tx, owner, record.Climbs); err != nil {
		return nil, err
	}

	prepareSessionDefaults(record, r.now())

	return r.repo.CreateTx(ctx, tx, record)
}

// Update replaces the mutable fields of a session. The owner and the
// creation time are never taken from the payload and an omitted date keeps
// the stored one.
func (r *sessions) Update(ctx context.Context, owner uuid.UUID, record *Session) (*Session, error) {
	if record == nil {
		return nil, errNilRecord
	}

	current, err := r.Get(ctx, owner, record.ID)
	if err != nil {
		return nil, err
	}

	if err := checkClimbRoutes(ctx, r.db, owner, record.Climbs); err != nil {
		return nil, err
	}

	record.UserID = owner
	record.CreatedAt = current.CreatedAt
	if record.Date.IsZero() {
		record.Date = current.Date
	}
	prepareSessionDefaults(record, r.now())

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

func (r *sessions) Delete(ctx context.Context, owner, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.user_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, id)
}

func (r *sessions) Count(ctx context.Context, owner uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", owner).
		Count(ctx)
}

func (r *sessions) TotalDuration(ctx context.Context, owner uuid.UUID) (int, error) {
	var total int
	err := r.db.NewSelect().
		Model((*Session)(nil)).
		ColumnExpr("COALESCE(SUM(?TableAlias.duration), 0)").
		Where("?TableAlias.user_id = ?", owner).
		Scan(ctx, &total)
	return total, err
}

// checkClimbRoutes rejects climbs that point at a route the owner does not
// have. A foreign route is reported the same way as a missing one.
func checkClimbRoutes(ctx context.Context, db bun.IDB, owner uuid.UUID, climbs []SessionClimb) error {
	fields := map[string]string{}
	known := map[uuid.UUID]bool{}

	for i, climb := range climbs {
		id, err := uuid.Parse(climb.RouteID)
		if err != nil {
			fields[fmt.Sprintf("climbs.%d.route", i)] = "must be a valid UUID"
			continue
		}

		ok, seen := known[id]
		if !seen {
			ok, err = db.NewSelect().
				Model((*Route)(nil)).
				Where("?TableAlias.id = ?", id).
				Where("?TableAlias.user_id = ?", owner).
				Exists(ctx)
			if err != nil {
				return err
			}
			known[id] = ok
		}
		if !ok {
			fields[fmt.Sprintf("climbs.%d.route", i)] = "must reference one of your routes"
		}
	}

	if len(fields) > 0 {
		return NewValidationError("session references unknown routes", fields)
	}
	return nil
}
