package climb

import (
	"context"
	"time"
)

// Auther logs users in and issues tokens for them
type Auther struct {
	credentials  *CredentialStore
	tokenService *TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(credentials *CredentialStore, tokens *TokenService) *Auther {
	return &Auther{
		credentials:  credentials,
		tokenService: tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// Credentials returns the credential store
func (s *Auther) Credentials() *CredentialStore {
	return s.credentials
}

// Login checks the credentials and returns a fresh token with the user.
// Unknown emails and wrong passwords fail the same way.
func (s *Auther) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": NormalizeEmail(email),
			"error":      err.Error(),
		})
		return "", nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, userActor(user), user.ID.String(), map[string]any{
			"identifier": user.Email,
			"error":      err.Error(),
		})
		return "", nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, userActor(user), user.ID.String(), map[string]any{
		"identifier": user.Email,
	})

	return token, user, nil
}

// IssueToken signs a token for the given user
func (s *Auther) IssueToken(user *User) (string, error) {
	if user == nil {
		return "", ErrIdentityNotFound
	}
	token, err := s.tokenService.Issue(user.ID.String())
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", user.ID.String(), "error", err)
		return "", err
	}
	return token, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	})
}
