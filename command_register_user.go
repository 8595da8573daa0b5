package climb

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name          string
	Email         string
	Password      string
	DateOfBirth   time.Time
	ClimbingLevel string
	OnResponse    func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User  *User
	Token string
}

type RegisterUserHandler struct {
	repo        RepositoryManager
	credentials *CredentialStore
	auther      *Auther
	activity    ActivitySink
	logger      Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, auther *Auther) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:        repo,
		credentials: auther.Credentials(),
		auther:      auther,
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	var user *User
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile := &User{
			Name:          event.Name,
			Email:         event.Email,
			DateOfBirth:   event.DateOfBirth,
			ClimbingLevel: event.ClimbingLevel,
		}

		var err error
		user, err = h.credentials.CreateUserTx(ctx, tx, profile, event.Password)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}

		return StoreUnavailable(err, "user registration transaction failed")
	}

	token, err := h.auther.IssueToken(user)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRegistered,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Token: token})
	}

	return nil
}
