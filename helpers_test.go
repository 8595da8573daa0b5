package climb_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	climb "github.com/goliatone/go-climb"
	"github.com/goliatone/go-climb/persistence"
)

// testClock is a settable time source shared by every service of a stack
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturingSink struct {
	mu     sync.Mutex
	events []climb.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt climb.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []climb.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]climb.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// newTestDB opens a private in memory database with the schema applied
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(ctx, db))
	return db
}

type testStack struct {
	db          *bun.DB
	clock       *testClock
	repo        climb.RepositoryManager
	tokens      *climb.TokenService
	credentials *climb.CredentialStore
	auther      *climb.Auther
	gate        *climb.Gate
	sink        *capturingSink
}

var stackEpoch = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	clock := newTestClock(stackEpoch)
	sink := &capturingSink{}

	repo := climb.NewRepositoryManager(db, climb.WithRepositoryClock(clock.Now))

	tokens, err := climb.NewTokenService([]byte("stack-secret"), 0, "climb-test", nopLogger{})
	require.NoError(t, err)
	tokens.WithClock(clock.Now)

	credentials := climb.NewCredentialStore(repo.Users(),
		climb.WithPasswordCost(bcrypt.MinCost),
		climb.WithCredentialClock(clock.Now),
		climb.WithCredentialLogger(nopLogger{}),
	)

	auther := climb.NewAuthenticator(credentials, tokens).
		WithLogger(nopLogger{}).
		WithActivitySink(sink)

	return &testStack{
		db:          db,
		clock:       clock,
		repo:        repo,
		tokens:      tokens,
		credentials: credentials,
		auther:      auther,
		gate:        climb.NewGate(tokens, credentials, nopLogger{}),
		sink:        sink,
	}
}

func (s *testStack) createUser(t *testing.T, name, email, password string) *climb.User {
	t.Helper()
	user, err := s.credentials.CreateUser(context.Background(), &climb.User{
		Name:        name,
		Email:       email,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}, password)
	require.NoError(t, err)
	return user
}
