package climb

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// DefaultResetTTL is how long a password reset secret stays valid
const DefaultResetTTL = 10 * time.Minute

const resetSecretBytes = 32

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetResponse never tells the caller whether the email
// belongs to an account.
type InitializePasswordResetResponse struct {
	Success bool
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier ResetNotifier
	activity ActivitySink
	logger   Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: NewLoggerResetNotifier(defLogger{}, false),
		activity: noopActivitySink{},
		logger:   defLogger{},
		ttl:      DefaultResetTTL,
		now:      time.Now,
	}
}

// WithNotifier sets who receives the reset secret.
func (h *InitializePasswordResetHandler) WithNotifier(notifier ResetNotifier) *InitializePasswordResetHandler {
	if notifier != nil {
		h.notifier = notifier
	}
	return h
}

// WithTTL sets how long the secret is valid.
func (h *InitializePasswordResetHandler) WithTTL(ttl time.Duration) *InitializePasswordResetHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

// WithClock overrides the time source.
func (h *InitializePasswordResetHandler) WithClock(now func() time.Time) *InitializePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// WithActivitySink sets the sink used to emit reset request events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	var user *User
	var secret string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				user = nil
				return nil
			}
			return StoreUnavailable(err, "failed to retrieve user for password reset")
		}

		var tokenHash string
		secret, tokenHash, err = newResetSecret()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password reset secret")
		}

		expires := h.now().Add(h.ttl)
		if err := h.repo.Users().SetResetTokenTx(ctx, tx, user.ID, tokenHash, expires); err != nil {
			return StoreUnavailable(err, "failed to store password reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if user != nil {
		if err := h.notifier.NotifyPasswordReset(ctx, user, secret); err != nil {
			h.logger.Error("password reset notification failed", "user_id", user.ID.String(), "error", err)
		}

		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventPasswordResetRequest,
			Actor:     userActor(user),
			UserID:    user.ID.String(),
		})
	} else {
		h.logger.Debug("password reset requested for unknown email")
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{Success: true})
	}

	return nil
}

// newResetSecret returns the secret handed to the user and the digest that
// is stored. Only the digest is persisted.
func newResetSecret() (secret, digest string, err error) {
	buf := make([]byte, resetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = hex.EncodeToString(buf)
	return secret, hashResetSecret(secret), nil
}

func hashResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// LoggerResetNotifier records reset requests in the log instead of
// delivering them. The link carries the reset secret, so it is only written
// when the notifier was built with the link enabled, and then at debug level.
type LoggerResetNotifier struct {
	logger      Logger
	includeLink bool
}

// NewLoggerResetNotifier returns a notifier that writes to logger
func NewLoggerResetNotifier(logger Logger, includeLink bool) LoggerResetNotifier {
	return LoggerResetNotifier{logger: normalizeLogger(logger), includeLink: includeLink}
}

func (n LoggerResetNotifier) NotifyPasswordReset(_ context.Context, user *User, secret string) error {
	logger := normalizeLogger(n.logger)
	logger.Info("password reset requested", "to", user.Email)
	if n.includeLink {
		logger.Debug("password reset link", "to", user.Email, "link", "/password-reset/"+secret)
	}
	return nil
}
