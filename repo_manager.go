package climb

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Sessions() Sessions
	Routes() Routes
}

type mngr struct {
	db       *bun.DB
	users    Users
	sessions Sessions
	routes   Routes
}

type managerConfig struct {
	users    []UsersOption
	sessions []SessionsOption
	routes   []RoutesOption
}

// RepositoryOption configures the repositories built by the manager
type RepositoryOption func(*managerConfig)

// WithRepositoryClock sets the time source of every repository
func WithRepositoryClock(now func() time.Time) RepositoryOption {
	return func(c *managerConfig) {
		c.users = append(c.users, WithUsersClock(now))
		c.sessions = append(c.sessions, WithSessionsClock(now))
		c.routes = append(c.routes, WithRoutesClock(now))
	}
}

func NewRepositoryManager(db *bun.DB, opts ...RepositoryOption) RepositoryManager {
	cfg := &managerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return &mngr{
		db:       db,
		users:    NewUsersRepository(db, cfg.users...),
		sessions: NewSessionsRepository(db, cfg.sessions...),
		routes:   NewRoutesRepository(db, cfg.routes...),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.routes == nil {
		return errors.New("repository routes should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}

func (m mngr) Routes() Routes {
	return m.routes
}

// ownedBy restricts a select to rows that belong to owner
func ownedBy(owner uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.user_id = ?", owner)
	}
}

// expectRows turns a write that touched nothing into a not found error.
// That covers both a missing id and a row owned by someone else.
func expectRows(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}
