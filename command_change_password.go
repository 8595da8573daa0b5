package climb

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type ChangePasswordMessage struct {
	UserID          uuid.UUID
	CurrentPassword string
	Password        string
	OnResponse      func(resp *ChangePasswordResponse)
}

func (m ChangePasswordMessage) Type() string { return "user.password_change" }

type ChangePasswordResponse struct {
	Token string
}

// ChangePasswordHandler changes the password of an authenticated user. Every
// token issued before the change becomes stale, the response carries a
// replacement.
type ChangePasswordHandler struct {
	repo     RepositoryManager
	auther   *Auther
	activity ActivitySink
	logger   Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager, auther *Auther) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		auther:   auther,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	credentials := h.auther.Credentials()

	user, err := h.repo.Users().GetByUUID(ctx, event.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return StoreUnavailable(err, "failed to load user for password change")
	}

	if !credentials.VerifyPassword(user, event.CurrentPassword) {
		return ErrInvalidCredentials
	}

	if err := credentials.ChangePassword(ctx, user, event.Password); err != nil {
		return err
	}

	token, err := h.auther.IssueToken(user)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&ChangePasswordResponse{Token: token})
	}

	return nil
}
